package notifications

// Embed colors by event class.
const (
	ColorCreated  = 0x2ECC71
	ColorDeleted  = 0xE74C3C
	ColorEdited   = 0xF1C40F
	ColorGeneric  = 0x1ABC9C
)

// Discord rejects embeds over these lengths, counted in characters.
const (
	maxTitle      = 256
	maxAuthorName = 256
	maxFieldValue = 1024
)

// Message is the JSON body posted to a webhook endpoint.
type Message struct {
	Username  string  `json:"username"`
	AvatarURL string  `json:"avatar_url,omitempty"`
	Embeds    []Embed `json:"embeds"`
}

// Embed is a single rich message block.
type Embed struct {
	Title     string       `json:"title"`
	Color     int          `json:"color"`
	Fields    []EmbedField `json:"fields"`
	Footer    *EmbedFooter `json:"footer,omitempty"`
	Author    *EmbedAuthor `json:"author,omitempty"`
	Timestamp string       `json:"timestamp,omitempty"`
}

// EmbedField is a name/value row of an embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// EmbedFooter is the footer line of an embed.
type EmbedFooter struct {
	Text string `json:"text"`
}

// EmbedAuthor is the author line of an embed.
type EmbedAuthor struct {
	Name string `json:"name"`
}

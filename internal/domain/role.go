package domain

import "strconv"

// Tier is the permission class a role level belongs to.
// Lower value means more privilege.
type Tier int

// Permission tiers.
const (
	TierAdminGeral    Tier = 1
	TierAdmin         Tier = 2
	TierGerenteAcao   Tier = 3
	TierGerenteVendas Tier = 4
	TierGerenteMetas  Tier = 5
	TierSoldado       Tier = 6
)

// LevelSoldado is the level assigned to members without a management role.
const LevelSoldado = int(TierSoldado)

type roleInfo struct {
	label string
	icon  string
	color int
}

var roleTable = map[Tier]roleInfo{
	TierAdminGeral:    {label: "Admin Geral", icon: "👑", color: 0xE67E22},
	TierAdmin:         {label: "Admin", icon: "🛡️", color: 0x9B59B6},
	TierGerenteAcao:   {label: "Gerente de Ação", icon: "⚔️", color: 0xE74C3C},
	TierGerenteVendas: {label: "Gerente de Vendas", icon: "💰", color: 0xF1C40F},
	TierGerenteMetas:  {label: "Gerente de Metas", icon: "🎯", color: 0x3498DB},
	TierSoldado:       {label: "Soldado", icon: "🪖", color: 0x95A5A6},
}

// TierOf classifies a role level. Levels outside 1..5 are Soldado.
func TierOf(level int) Tier {
	if level >= int(TierAdminGeral) && level <= int(TierGerenteMetas) {
		return Tier(level)
	}
	return TierSoldado
}

// LabelFor returns the display label for a role level.
func LabelFor(level int) string {
	return roleTable[TierOf(level)].label
}

// IconFor returns the display icon for a role level.
func IconFor(level int) string {
	return roleTable[TierOf(level)].icon
}

// ColorFor returns the display color for a role level as 0xRRGGBB.
func ColorFor(level int) int {
	return roleTable[TierOf(level)].color
}

// Label returns the tier's display label.
func (t Tier) Label() string {
	return roleTable[TierOf(int(t))].label
}

// IsAdmin reports whether the tier is one of the two admin tiers.
func (t Tier) IsAdmin() bool {
	return t == TierAdminGeral || t == TierAdmin
}

// IsManager reports whether the tier is a domain-scoped manager tier.
func (t Tier) IsManager() bool {
	return t >= TierGerenteAcao && t <= TierGerenteMetas
}

func (t Tier) String() string {
	return "tier" + strconv.Itoa(int(t))
}

// Tiers returns all tiers from most to least privileged.
func Tiers() []Tier {
	return []Tier{TierAdminGeral, TierAdmin, TierGerenteAcao, TierGerenteVendas, TierGerenteMetas, TierSoldado}
}

// RoleDisplay is the presentation of a role level used in API responses.
type RoleDisplay struct {
	Level int    `json:"level"`
	Tier  Tier   `json:"tier"`
	Label string `json:"label"`
	Icon  string `json:"icon"`
	Color int    `json:"color"`
}

// DisplayRole builds the presentation of a role level.
func DisplayRole(level int) RoleDisplay {
	return RoleDisplay{
		Level: level,
		Tier:  TierOf(level),
		Label: LabelFor(level),
		Icon:  IconFor(level),
		Color: ColorFor(level),
	}
}

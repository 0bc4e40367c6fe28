package stats

// DefaultTeamColor is used for teams without a brand color
const DefaultTeamColor = "#E10600"

var teamColors = map[string]string{
	"Ferrari":      "#FF2800",
	"Mercedes":     "#00D2BE",
	"Red Bull":     "#0600EF",
	"McLaren":      "#FF8700",
	"Aston Martin": "#006F62",
	"Alpine":       "#0090FF",
	"Williams":     "#005AFF",
	"Haas":         "#FFFFFF",
	"RB":           "#6692FF",
	"Kick Sauber":  "#52E252",
}

// TeamColor returns the brand hex color of a team
func TeamColor(team string) string {
	if c, ok := teamColors[team]; ok {
		return c
	}
	return DefaultTeamColor
}

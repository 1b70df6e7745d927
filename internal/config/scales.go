package config

// LevelCode maps a qualitative level label to its ordinal code.
type LevelCode struct {
	Level string `mapstructure:"level" validate:"required"`
	Code  int    `mapstructure:"code" validate:"gte=0"`
}

// Band maps a half-open interval (Min, Max] of mean codes to a level label.
type Band struct {
	Min   float64 `mapstructure:"min"`
	Max   float64 `mapstructure:"max" validate:"gtfield=Min"`
	Label string  `mapstructure:"label" validate:"required"`
}

// Scale turns a mean code back into a label. Bands are tried in order and
// Fallback is used when none matches.
type Scale struct {
	Bands    []Band `mapstructure:"bands" validate:"dive"`
	Fallback string `mapstructure:"fallback" validate:"required"`
}

// Icon is the LaTeX rendering of one level code.
type Icon struct {
	Color  string `mapstructure:"color" validate:"required"`
	Symbol string `mapstructure:"symbol" validate:"required"`
}

// ScalesConfig gathers the lookup tables of the qualitative evaluations.
// Icons is indexed by level code.
type ScalesConfig struct {
	LevelCodes []LevelCode `mapstructure:"level_codes" validate:"dive"`
	Skills     Scale       `mapstructure:"skills"`
	Copy       Scale       `mapstructure:"copy"`
	Icons      []Icon      `mapstructure:"icons" validate:"dive"`
}

// DefaultScales returns the French four-level tables. Skills and copy use
// different band edges on purpose: copy evaluations never exceed code 2.
func DefaultScales() ScalesConfig {
	return ScalesConfig{
		LevelCodes: []LevelCode{
			{Level: "Dépasse les exigences", Code: 3},
			{Level: "Bien", Code: 2},
			{Level: "Acquis", Code: 2},
			{Level: "En voie d'acquisition", Code: 1},
			{Level: "Moyen", Code: 1},
		},
		Skills: Scale{
			Bands: []Band{
				{Min: 2.5, Max: 3, Label: "Dépasse les exigences"},
				{Min: 1.5, Max: 2.5, Label: "Acquis"},
				{Min: 0.5, Max: 1.5, Label: "En voie d'acquisition"},
			},
			Fallback: "Non acquis",
		},
		Copy: Scale{
			Bands: []Band{
				{Min: 1.5, Max: 2, Label: "Bien"},
				{Min: 0.5, Max: 1.5, Label: "Moyen"},
			},
			Fallback: "Faible",
		},
		Icons: []Icon{
			{Color: "DarkRed", Symbol: `\faFrownO`},
			{Color: "DarkOrange", Symbol: `\faMehO`},
			{Color: "DarkGreen", Symbol: `\faSmileO`},
			{Color: "DarkBlue", Symbol: `\faRocket`},
		},
	}
}

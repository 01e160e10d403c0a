package encoder

// #region vector
// Vector is a fixed-length feature vector. Vectors are never mutated after
// construction; callers that need to change one must copy it first.
type Vector []float32

// #endregion vector

// #region config
// Config controls the vector layout.
type Config struct {
	UnitWeight float32 `yaml:"unit_weight"` // value of a present unit dim
	MoodWeight float32 `yaml:"mood_weight"` // scale of the mood block
	MaxSlots   int     `yaml:"max_slots"`   // denominator of the unit-count ratio
}

// DefaultConfig returns the layout used by the seed corpus. UnitWeight dominates
// so that unit presence outweighs any mood difference.
func DefaultConfig() Config {
	return Config{
		UnitWeight: 20.0,
		MoodWeight: 1.0,
		MaxSlots:   6,
	}
}

// #endregion config

// #region mood
// Mood names one dimension of the mood block.
type Mood int

const (
	Warmth Mood = iota
	Brightness
	Aggression
	Space
	Movement
	Vintage
	Clarity
	Width
	moodDims
)

var moodNames = [moodDims]string{
	"warmth", "brightness", "aggression", "space", "movement", "vintage", "clarity", "width",
}

func (m Mood) String() string {
	if m < 0 || m >= moodDims {
		return "unknown"
	}
	return moodNames[m]
}

// moodKeywords maps vibe tokens to the mood dimension they raise.
var moodKeywords = map[Mood][]string{
	Warmth:     {"warm", "warmth", "analog", "smooth", "lush", "rich", "creamy", "round", "mellow", "soft", "cozy", "tube"},
	Brightness: {"bright", "crisp", "airy", "sparkle", "shiny", "sparkly", "shimmer", "glassy", "brilliant", "treble"},
	Aggression: {"aggressive", "harsh", "gritty", "dirty", "heavy", "distorted", "fuzz", "fuzzy", "crunch", "crunchy", "angry", "brutal", "saturated", "saturation", "loud", "punchy", "punch"},
	Space:      {"space", "spacious", "ambient", "huge", "big", "vast", "hall", "cathedral", "cavern", "reverb", "echo", "roomy", "ethereal", "dreamy", "dream", "distant"},
	Movement:   {"moving", "movement", "swirl", "swirling", "wobble", "wobbly", "pulsing", "pulse", "chorus", "phaser", "flanger", "modulated", "tremolo", "vibrato", "warble", "rhythmic"},
	Vintage:    {"vintage", "retro", "old", "classic", "tape", "lofi", "worn", "dusty", "vinyl", "cassette", "analog", "70s", "60s", "80s"},
	Clarity:    {"clear", "clean", "tight", "transparent", "pristine", "focused", "precise", "polished", "controlled", "defined", "present"},
	Width:      {"wide", "stereo", "width", "panoramic", "immersive", "spread", "enveloping", "expansive"},
}

// genreBoosts adds a fixed amount to mood dims when the request names a genre.
var genreBoosts = map[string]map[Mood]float32{
	"rock":        {Aggression: 0.3, Warmth: 0.1},
	"metal":       {Aggression: 0.5, Clarity: 0.1},
	"jazz":        {Warmth: 0.3, Vintage: 0.2, Clarity: 0.1},
	"blues":       {Warmth: 0.3, Vintage: 0.3},
	"ambient":     {Space: 0.5, Width: 0.2, Movement: 0.1},
	"electronic":  {Brightness: 0.2, Movement: 0.2, Width: 0.2},
	"edm":         {Brightness: 0.3, Aggression: 0.2, Width: 0.2},
	"techno":      {Movement: 0.2, Aggression: 0.2},
	"hiphop":      {Warmth: 0.2, Vintage: 0.2, Aggression: 0.1},
	"hip-hop":     {Warmth: 0.2, Vintage: 0.2, Aggression: 0.1},
	"lofi":        {Vintage: 0.5, Warmth: 0.3},
	"pop":         {Brightness: 0.3, Clarity: 0.3},
	"funk":        {Movement: 0.3, Warmth: 0.2},
	"shoegaze":    {Space: 0.4, Movement: 0.3, Aggression: 0.1},
	"psychedelic": {Movement: 0.4, Space: 0.2, Vintage: 0.2},
	"classical":   {Clarity: 0.3, Space: 0.2},
	"country":     {Warmth: 0.2, Clarity: 0.2, Vintage: 0.1},
	"reggae":      {Space: 0.2, Warmth: 0.2, Movement: 0.1},
	"dub":         {Space: 0.4, Movement: 0.2},
	"punk":        {Aggression: 0.4, Vintage: 0.1},
}

var keywordIndex = func() map[string][]Mood {
	idx := make(map[string][]Mood)
	for m, words := range moodKeywords {
		for _, w := range words {
			idx[w] = append(idx[w], m)
		}
	}
	return idx
}()

// #endregion mood

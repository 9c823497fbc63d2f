package session

import "math/rand"

// Avatar is a cosmetic appearance made of four independent choices.
type Avatar struct {
	Type          string `json:"type"`
	HairColor     string `json:"hairColor"`
	SkinTone      string `json:"skinTone"`
	ClothingColor string `json:"clothingColor"`
}

// Avatar choice sets.
var (
	AvatarTypes    = []string{"male1", "male2", "female1", "female2"}
	HairColors     = []string{"#000", "#8B4513", "#FFD700", "#FF6347", "#800080", "#FF1493"}
	SkinTones      = []string{"#FFDBAC", "#F1C27D", "#E0AC69", "#C68642", "#8D5524"}
	ClothingColors = []string{"#FF0000", "#00FF00", "#0000FF", "#FFFF00", "#FF00FF", "#00FFFF", "#FFA500"}
)

// RandomAvatar picks each category uniformly and independently.
//
// Precondition: rng must be non-nil.
func RandomAvatar(rng *rand.Rand) Avatar {
	pick := func(opts []string) string { return opts[rng.Intn(len(opts))] }
	return Avatar{
		Type:          pick(AvatarTypes),
		HairColor:     pick(HairColors),
		SkinTone:      pick(SkinTones),
		ClothingColor: pick(ClothingColors),
	}
}

package domain

// FeatureTag identifies which feature's state a broadcast payload describes.
// Values are the wire names dashboard clients subscribe on.
type FeatureTag string

const (
	FeatureSongs         FeatureTag = "songState"
	FeatureVote          FeatureTag = "voteState"
	FeatureDraw          FeatureTag = "drawState"
	FeatureRoulette      FeatureTag = "rouletteState"
	FeatureParticipation FeatureTag = "participationState"
	FeaturePoints        FeatureTag = "pointsState"
	FeatureCommands      FeatureTag = "commandsState"
	FeatureGreet         FeatureTag = "greetState"
)

// AllFeatures lists every feature tag, in the order full-state resyncs are
// pushed on (re)subscribe.
func AllFeatures() []FeatureTag {
	return []FeatureTag{
		FeatureSongs,
		FeatureVote,
		FeatureDraw,
		FeatureRoulette,
		FeatureParticipation,
		FeaturePoints,
		FeatureCommands,
		FeatureGreet,
	}
}

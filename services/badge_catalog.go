package services

const (
	RarityCommon    = 1
	RarityRare      = 2
	RarityEpic      = 3
	RarityLegendary = 4
)

const (
	BadgeLevelTwo        = 1
	BadgeSuperStar       = 2
	BadgeFirstHelpGiven  = 3
	BadgeFirstHelpAsked  = 4
	BadgeSpeedyService   = 5
	BadgeDedicatedHelper = 6
	BadgeGenerousSoul    = 7
	BadgeCommunityPillar = 8
	BadgeAppreciative    = 9
	BadgeLegendaryHelper = 10

	// CategoryBadgeBase + category id is awarded for completing a request of that category.
	CategoryBadgeBase = 100
	// SpecialBadgeBase is the first id handed out by admin special awards.
	SpecialBadgeBase = 1000
)

// GenerousRewardThreshold is the reward that earns the "Generous Soul" badge.
const GenerousRewardThreshold = 5000

// BadgeMetric is the counter a badge's progress is measured against.
type BadgeMetric int

const (
	MetricNone BadgeMetric = iota
	MetricCompletedHelps
	MetricRequestsCreated
)

type BadgeDefinition struct {
	ID          int         `json:"id"`
	Name        string      `json:"name"`
	Rarity      int         `json:"rarity"`
	Description string      `json:"description"`
	Target      int         `json:"target"`
	Metric      BadgeMetric `json:"-"`
}

var badgeCatalog = map[int]BadgeDefinition{
	BadgeLevelTwo:        {ID: BadgeLevelTwo, Name: "Making Progress!", Rarity: RarityCommon, Description: "Reached level 2", Target: 1},
	BadgeSuperStar:       {ID: BadgeSuperStar, Name: "Super Star", Rarity: RarityLegendary, Description: "Received a 5-star rating", Target: 1},
	BadgeFirstHelpGiven:  {ID: BadgeFirstHelpGiven, Name: "First Help Given", Rarity: RarityCommon, Description: "Completed your first request", Target: 1, Metric: MetricCompletedHelps},
	BadgeFirstHelpAsked:  {ID: BadgeFirstHelpAsked, Name: "First Help Asked", Rarity: RarityCommon, Description: "Created your first request", Target: 1, Metric: MetricRequestsCreated},
	BadgeSpeedyService:   {ID: BadgeSpeedyService, Name: "Speedy Service", Rarity: RarityRare, Description: "Completed a request within 24 hours", Target: 1},
	BadgeDedicatedHelper: {ID: BadgeDedicatedHelper, Name: "Dedicated Helper", Rarity: RarityRare, Description: "Completed 10 requests", Target: 10, Metric: MetricCompletedHelps},
	BadgeGenerousSoul:    {ID: BadgeGenerousSoul, Name: "Generous Soul", Rarity: RarityRare, Description: "Offered a reward of 5000+ coins", Target: 1},
	BadgeCommunityPillar: {ID: BadgeCommunityPillar, Name: "Community Pillar", Rarity: RarityRare, Description: "Created 10 requests", Target: 10, Metric: MetricRequestsCreated},
	BadgeAppreciative:    {ID: BadgeAppreciative, Name: "Appreciative", Rarity: RarityCommon, Description: "Gave a 5-star rating", Target: 1},
	BadgeLegendaryHelper: {ID: BadgeLegendaryHelper, Name: "Legendary Helper", Rarity: RarityLegendary, Description: "Completed 100 requests", Target: 100, Metric: MetricCompletedHelps},

	101: {ID: 101, Name: "Super Shopper", Rarity: RarityCommon, Description: "Completed a Shopping request", Target: 1},
	102: {ID: 102, Name: "Dog Whisperer", Rarity: RarityCommon, Description: "Completed a Dog Walking request", Target: 1},
	103: {ID: 103, Name: "Clean Freak", Rarity: RarityCommon, Description: "Completed a Cleaning request", Target: 1},
	104: {ID: 104, Name: "Green Thumb", Rarity: RarityCommon, Description: "Completed a Gardening request", Target: 1},
	105: {ID: 105, Name: "Knowledge Sharer", Rarity: RarityCommon, Description: "Completed a Tutoring request", Target: 1},
	106: {ID: 106, Name: "Pet Pal", Rarity: RarityCommon, Description: "Completed a Pet Sitting request", Target: 1},
	107: {ID: 107, Name: "Fix-It Pro", Rarity: RarityCommon, Description: "Completed a Home Repair request", Target: 1},
}

// completionMilestones are awarded when the completed-help count equals the key.
var completionMilestones = map[int64]int{
	1:   BadgeFirstHelpGiven,
	10:  BadgeDedicatedHelper,
	100: BadgeLegendaryHelper,
}

// requestMilestones are awarded when the created-request count equals the key.
var requestMilestones = map[int64]int{
	1:  BadgeFirstHelpAsked,
	10: BadgeCommunityPillar,
}

func CategoryBadgeID(categoryID uint) int {
	return CategoryBadgeBase + int(categoryID)
}

// LookupBadge resolves a catalog entry.
func LookupBadge(badgeID int) (BadgeDefinition, bool) {
	def, ok := badgeCatalog[badgeID]
	return def, ok
}

// BadgeTarget is the count a badge completes at. Unknown badges complete at 1.
func BadgeTarget(badgeID int) int {
	if def, ok := LookupBadge(badgeID); ok && def.Target > 0 {
		return def.Target
	}
	return 1
}

// CalculateBadgeProgress returns min(100, floor(completed/target*100)).
func CalculateBadgeProgress(badgeID, completedCount int) int {
	if completedCount <= 0 {
		return 0
	}
	target := BadgeTarget(badgeID)
	progress := completedCount * 100 / target
	if progress > 100 {
		return 100
	}
	return progress
}

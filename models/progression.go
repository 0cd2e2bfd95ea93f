package models

// LevelTwoThreshold is the level at which the "reached level 2" badge applies.
const LevelTwoThreshold = 2

// ExperienceToNextLevel returns the experience needed to leave level.
func ExperienceToNextLevel(level int) int {
	return 100 * level
}

// ExperienceToNextLevel returns the experience the user needs to leave the current level.
func (u *User) ExperienceToNextLevel() int {
	return ExperienceToNextLevel(u.Level)
}

// AddExperience adds xp and cascades level ups. It returns the number of levels gained.
// Non-positive amounts are ignored.
func (u *User) AddExperience(xp int) int {
	if xp <= 0 {
		return 0
	}
	if u.Level < 1 {
		u.Level = 1
	}

	u.Experience += xp
	gained := 0
	for u.Experience >= u.ExperienceToNextLevel() {
		u.Experience -= u.ExperienceToNextLevel()
		u.Level++
		gained++
	}
	return gained
}

// HasBadge reports whether badgeID is in the user's badge set.
func (u *User) HasBadge(badgeID int) bool {
	for _, id := range u.Badges {
		if id == badgeID {
			return true
		}
	}
	return false
}

// AddBadge inserts badgeID into the badge set. It returns false if it was already present.
func (u *User) AddBadge(badgeID int) bool {
	if u.HasBadge(badgeID) {
		return false
	}
	u.Badges = append(u.Badges, badgeID)
	return true
}

package models

import "time"

// UserRanking holds the Elo state for one (user, sport, district) partition.
// Rows are created lazily on a player's first verified match in that
// partition. Rank is a dense ordinal within (sport, district), written only
// by the batch recomputation — never synchronously per match.
type UserRanking struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string    `gorm:"not null;uniqueIndex:idx_user_sport_district" json:"user_id"`
	Sport     string    `gorm:"not null;uniqueIndex:idx_user_sport_district;index:idx_partition" json:"sport"`
	District  string    `gorm:"not null;uniqueIndex:idx_user_sport_district;index:idx_partition" json:"district"`
	EloRating float64   `gorm:"default:1000" json:"elo_rating"`
	Wins      int64     `gorm:"default:0" json:"wins"`
	Losses    int64     `gorm:"default:0" json:"losses"`
	Rank      int       `gorm:"default:0" json:"rank"` // 0 = not yet ranked
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// LeaderboardEntry is a ranking row joined with display identity, as served
// by the leaderboard endpoint. Tier is derived on read and never stored.
type LeaderboardEntry struct {
	UserID    string  `json:"user_id"`
	Username  string  `json:"username"`
	FullName  string  `json:"full_name"`
	AvatarURL *string `json:"avatar_url,omitempty"`
	Sport     string  `json:"sport"`
	District  string  `json:"district"`
	EloRating float64 `json:"elo_rating"`
	Wins      int64   `json:"wins"`
	Losses    int64   `json:"losses"`
	Rank      int     `json:"rank"`
	Tier      string  `json:"tier"`
}

// TierBands maps a dense rank to a display tier. The UI repeated these four
// numeric bands in several places; they live here once, overridable at
// startup.
type TierBands struct {
	Gold int // rank 1..Gold
	Red  int // ..Red
	Blue int // ..Blue, anything beyond is pink
}

var DefaultTierBands = TierBands{Gold: 24, Red: 49, Blue: 74}

// TierForRank returns the badge tier for a dense rank. Rank 0 (unranked)
// falls into the last band.
func (b TierBands) TierForRank(rank int) string {
	switch {
	case rank >= 1 && rank <= b.Gold:
		return "gold"
	case rank > b.Gold && rank <= b.Red:
		return "red"
	case rank > b.Red && rank <= b.Blue:
		return "blue"
	default:
		return "pink"
	}
}

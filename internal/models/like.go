package models

import "time"

// LikeEdge is a directed like. Mutual is set on both edges of a pair once both exist.
type LikeEdge struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	FromUserID int64     `gorm:"not null;uniqueIndex:idx_like_pair,priority:1" json:"from_user_id"`
	ToUserID   int64     `gorm:"not null;uniqueIndex:idx_like_pair,priority:2;index" json:"to_user_id"`
	CreatedAt  time.Time `json:"created_at"`
	Mutual     bool      `gorm:"not null" json:"mutual"`

	From *User `gorm:"foreignKey:FromUserID;constraint:OnDelete:CASCADE" json:"-"`
	To   *User `gorm:"foreignKey:ToUserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the database table name for LikeEdge.
func (LikeEdge) TableName() string {
	return "like_edges"
}

// LikeResult is the outcome of a like attempt. Created is false for a repeated like.
type LikeResult struct {
	Created bool
	Mutual  bool
}

// Liker is one incoming like.
type Liker struct {
	UserID  int64     `json:"user_id"`
	LikedAt time.Time `json:"liked_at"`
	Mutual  bool      `json:"mutual"`
}

// MutualPartner is the other side of a mutual like, resolved with its profile name.
type MutualPartner struct {
	PartnerID int64  `json:"partner_id"`
	Role      Role   `json:"role"`
	Name      string `json:"name"`
	Owner
}

// ViewedRecord marks a candidate as already surfaced to a viewer.
type ViewedRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ViewerID    int64     `gorm:"not null;uniqueIndex:idx_viewed_pair,priority:1" json:"viewer_id"`
	CandidateID int64     `gorm:"not null;uniqueIndex:idx_viewed_pair,priority:2;index" json:"candidate_id"`
	ViewedAt    time.Time `gorm:"autoCreateTime" json:"viewed_at"`

	Viewer    *User `gorm:"foreignKey:ViewerID;constraint:OnDelete:CASCADE" json:"-"`
	Candidate *User `gorm:"foreignKey:CandidateID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the database table name for ViewedRecord.
func (ViewedRecord) TableName() string {
	return "viewed_records"
}

// IDSet is a set of user ids.
type IDSet map[int64]struct{}

// Has reports whether id is in the set.
func (s IDSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

// UserStats are the per-user aggregates.
type UserStats struct {
	Role          Role  `json:"role"`
	LikesGiven    int64 `json:"likes_given"`
	LikesReceived int64 `json:"likes_received"`
	Mutual        int64 `json:"mutual"`
}

// GlobalStats are the service-wide aggregates.
type GlobalStats struct {
	Providers   int64 `json:"providers"`
	Seekers     int64 `json:"seekers"`
	TotalLikes  int64 `json:"total_likes"`
	MutualPairs int64 `json:"mutual_pairs"`
}

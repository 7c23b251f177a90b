package models

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// LowestTier is granted on sign-up and cannot like or request meals.
const LowestTier = TierBronze

func (t Tier) Valid() bool {
	switch t {
	case TierBronze, TierSilver, TierGold, TierPlatinum:
		return true
	}
	return false
}

func (t Tier) Premium() bool {
	return t.Valid() && t != LowestTier
}

type Person struct {
	Name  string `json:"name"`
	Email string `json:"email" validate:"omitempty,email"`
}

type RequestStatus string

const (
	RequestPending RequestStatus = "pending"
	RequestServed  RequestStatus = "served"
)

type MealRequest struct {
	UserEmail string        `json:"userEmail" validate:"required,email"`
	UserName  string        `json:"userName"`
	Status    RequestStatus `json:"status" validate:"required,oneof=pending served"`
}

type MealReview struct {
	ID      string `json:"_id,omitempty"`
	Content string `json:"content"`
	Author  Person `json:"author"`
}

type Meal struct {
	ID           string        `json:"_id" validate:"required,objectid"`
	Title        string        `json:"title" validate:"required"`
	Category     string        `json:"category" validate:"required"`
	Price        float64       `json:"price" validate:"gte=0"`
	Ingredients  []string      `json:"ingredients"`
	Description  string        `json:"description"`
	Image        string        `json:"image" validate:"omitempty,url"`
	Likes        int           `json:"likes" validate:"gte=0"`
	Rating       float64       `json:"rating" validate:"gte=0,lte=5"`
	ReviewsCount int           `json:"reviews_count" validate:"gte=0"`
	Distributor  Person        `json:"distributor"`
	Reviews      []MealReview  `json:"reviews"`
	Requests     []MealRequest `json:"requests" validate:"dive"`
	PostedAt     time.Time     `json:"postedAt"`
}

// RequestedBy reports whether the meal already carries a request from email.
func (m *Meal) RequestedBy(email string) bool {
	for _, r := range m.Requests {
		if r.UserEmail == email {
			return true
		}
	}
	return false
}

// MealInput is the body of admin create/update calls.
type MealInput struct {
	Title       string   `json:"title" validate:"required,max=120"`
	Category    string   `json:"category" validate:"required,oneof=breakfast lunch dinner"`
	Price       float64  `json:"price" validate:"gt=0"`
	Ingredients []string `json:"ingredients" validate:"required,min=1,dive,required"`
	Description string   `json:"description" validate:"required"`
	Image       string   `json:"image" validate:"omitempty,url"`
	Distributor Person   `json:"distributor"`
}

type UpcomingMeal struct {
	ID          string    `json:"_id" validate:"required,objectid"`
	Title       string    `json:"title" validate:"required"`
	Category    string    `json:"category" validate:"required"`
	Price       float64   `json:"price" validate:"gte=0"`
	Ingredients []string  `json:"ingredients"`
	Description string    `json:"description"`
	Image       string    `json:"image" validate:"omitempty,url"`
	Likes       int       `json:"likes" validate:"gte=0"`
	LikedBy     []string  `json:"likedBy"`
	Distributor Person    `json:"distributor"`
	PostedAt    time.Time `json:"postedAt"`
}

type User struct {
	ID    string `json:"_id" validate:"required,objectid"`
	Name  string `json:"name"`
	Email string `json:"email" validate:"required,email"`
	Photo string `json:"photo" validate:"omitempty,url"`
	Role  Role   `json:"role" validate:"required,oneof=user admin"`
	Tier  Tier   `json:"badge" validate:"required,oneof=bronze silver gold platinum"`
}

type NewUser struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Photo string `json:"photo" validate:"omitempty,url"`
	Role  Role   `json:"role" validate:"required,oneof=user admin"`
	Tier  Tier   `json:"badge" validate:"required,oneof=bronze silver gold platinum"`
}

type Review struct {
	ID           string  `json:"_id" validate:"required,objectid"`
	MealID       string  `json:"mealId" validate:"required,objectid"`
	MealTitle    string  `json:"mealTitle"`
	Content      string  `json:"content" validate:"required"`
	Author       Person  `json:"author"`
	Likes        int     `json:"likes" validate:"gte=0"`
	ReviewsCount int     `json:"reviews_count" validate:"gte=0"`
	Rating       float64 `json:"rating" validate:"gte=0,lte=5"`
}

type ReviewInput struct {
	Content string `json:"content" validate:"required,min=3,max=1000"`
	Rating  int    `json:"rating" validate:"omitempty,gte=1,lte=5"`
}

type ServeRequest struct {
	ID           string        `json:"_id" validate:"required,objectid"`
	MealID       string        `json:"mealId" validate:"required,objectid"`
	MealTitle    string        `json:"mealTitle"`
	UserEmail    string        `json:"userEmail" validate:"required,email"`
	UserName     string        `json:"userName"`
	Status       RequestStatus `json:"status" validate:"required,oneof=pending served"`
	Likes        int           `json:"likes" validate:"gte=0"`
	ReviewsCount int           `json:"reviews_count" validate:"gte=0"`
}

type Package struct {
	Name     Tier     `json:"name" validate:"required,oneof=bronze silver gold platinum"`
	Price    float64  `json:"price" validate:"gte=0"`
	Benefits []string `json:"benefits"`
}

type PaymentRecord struct {
	ID            string    `json:"_id,omitempty"`
	Email         string    `json:"email" validate:"required,email"`
	Tier          Tier      `json:"badge" validate:"required,oneof=silver gold platinum"`
	Price         float64   `json:"price" validate:"gt=0"`
	TransactionID string    `json:"transactionId" validate:"required"`
	Date          time.Time `json:"date" validate:"required"`
}

// Ack is the write acknowledgement returned by every upstream mutation.
type Ack struct {
	Acknowledged  bool   `json:"acknowledged"`
	InsertedID    string `json:"insertedId,omitempty"`
	MatchedCount  int    `json:"matchedCount,omitempty"`
	ModifiedCount int    `json:"modifiedCount,omitempty"`
	DeletedCount  int    `json:"deletedCount,omitempty"`
}

// Changed reports whether the write touched anything at all.
func (a Ack) Changed() bool {
	return a.InsertedID != "" || a.ModifiedCount > 0 || a.DeletedCount > 0
}

type Count struct {
	Count int `json:"count" validate:"gte=0"`
}

// Principal is the signed-in user as seen by the rest of the app.
type Principal struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Photo string `json:"photo,omitempty"`
	Role  Role   `json:"role"`
	Tier  Tier   `json:"badge"`
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

func (p Principal) Person() Person { return Person{Name: p.Name, Email: p.Email} }

package tours

import "time"

type Tour struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Price          float64   `json:"price"`
	Country        string    `json:"country"`
	Summary        string    `json:"summary"`
	Description    string    `json:"description,omitempty"`
	Duration       int       `json:"duration"`
	StartPoint     string    `json:"startPoint"`
	ImageCover     string    `json:"imageCover,omitempty"`
	NumAdults      int       `json:"numOfAdults"`
	NumChildren    int       `json:"numOfChildren"`
	RatingAverage  float64   `json:"ratingAverage"`
	RatingQuantity int       `json:"ratingQuantity"`
	CreatedAt      time.Time `json:"createdAt"`
}

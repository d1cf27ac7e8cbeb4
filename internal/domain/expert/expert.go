package expert

// Match is the read-only projection of an expert returned by search and matching.
type Match struct {
	ID          string   `json:"_id"`
	Name        string   `json:"name"`
	Title       string   `json:"title,omitempty"`
	Expertise   []string `json:"expertise,omitempty"`
	Rating      float64  `json:"rating"`
	ReviewCount int      `json:"reviewCount"`
	Price       float64  `json:"price"`
	AvatarURL   string   `json:"profileImage,omitempty"`
}

package twitter

import "encoding/json"

// SearchResponse represents the recent search endpoint response.
type SearchResponse struct {
	Meta     Meta     `json:"meta"`
	Data     []Tweet  `json:"data"`
	Includes Includes `json:"includes"`
}

type Meta struct {
	ResultCount int       `json:"result_count"`
	NextToken   NextToken `json:"next_token"`
}

// NextToken records whether the next_token key was present at all, which is
// distinct from it being present with a null value.
type NextToken struct {
	Present bool
	Value   string
}

func (t *NextToken) UnmarshalJSON(b []byte) error {
	t.Present = true
	if string(b) == "null" {
		t.Value = ""
		return nil
	}
	return json.Unmarshal(b, &t.Value)
}

func (t NextToken) MarshalJSON() ([]byte, error) {
	if t.Value == "" {
		return []byte("null"), nil
	}
	return json.Marshal(t.Value)
}

type Tweet struct {
	ID            string         `json:"id"`
	AuthorID      string         `json:"author_id"`
	CreatedAt     string         `json:"created_at"`
	Text          string         `json:"text"`
	Lang          string         `json:"lang"`
	Source        string         `json:"source"`
	PublicMetrics *PublicMetrics `json:"public_metrics"`
	Geo           *Geo           `json:"geo"`
}

type PublicMetrics struct {
	RetweetCount *int `json:"retweet_count"`
	ReplyCount   *int `json:"reply_count"`
	LikeCount    *int `json:"like_count"`
	QuoteCount   *int `json:"quote_count"`
}

type Geo struct {
	PlaceID     string `json:"place_id"`
	Coordinates *Point `json:"coordinates"`
}

// Point is a GeoJSON point: [longitude, latitude].
type Point struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

type Includes struct {
	Places []Place `json:"places"`
}

type Place struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Country     string `json:"country"`
	CountryCode string `json:"country_code"`
	PlaceType   string `json:"place_type"`
}

// UsersResponse represents the users lookup endpoint response.
type UsersResponse struct {
	Data   []User     `json:"data"`
	Errors []APIError `json:"errors"`
}

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Location string `json:"location"`
}

type APIError struct {
	Value  string `json:"value"`
	Detail string `json:"detail"`
	Title  string `json:"title"`
}

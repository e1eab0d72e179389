package feed

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"math"

	"opencanvas-service/apperror"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Cursor marks the last position a client has seen in the ranked feed.
type Cursor struct {
	Score  float64
	LastID primitive.ObjectID
}

// cursorWire is the JSON shape inside the base64 token.
type cursorWire struct {
	Score  *float64 `json:"score"`
	LastID string   `json:"lastId"`
}

// EncodeCursor serializes c as base64 of {"score":..,"lastId":..}.
func EncodeCursor(c Cursor) string {
	score := c.Score
	b, _ := json.Marshal(cursorWire{Score: &score, LastID: c.LastID.Hex()})
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeCursor parses a token produced by EncodeCursor. An empty token means
// "start of feed" and yields a nil cursor without error; anything that does
// not decode to a finite score and a valid id is a validation error.
func DecodeCursor(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}

	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, apperror.Validation("Invalid cursor format")
	}

	var w cursorWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, apperror.Validation("Invalid cursor format")
	}
	if w.Score == nil || math.IsNaN(*w.Score) || math.IsInf(*w.Score, 0) {
		return nil, apperror.Validation("Invalid cursor format")
	}

	id, err := primitive.ObjectIDFromHex(w.LastID)
	if err != nil {
		return nil, apperror.Validation("Invalid cursor format")
	}

	return &Cursor{Score: *w.Score, LastID: id}, nil
}

// After reports whether the row (score, id) comes strictly after c in the
// (score DESC, id DESC) order. A nil cursor admits every row.
func After(c *Cursor, score float64, id primitive.ObjectID) bool {
	if c == nil {
		return true
	}
	if score != c.Score {
		return score < c.Score
	}
	return bytes.Compare(id[:], c.LastID[:]) < 0
}

// Less orders rows best-first: higher score, then higher id.
func Less(scoreA float64, idA primitive.ObjectID, scoreB float64, idB primitive.ObjectID) bool {
	if scoreA != scoreB {
		return scoreA > scoreB
	}
	return bytes.Compare(idA[:], idB[:]) > 0
}

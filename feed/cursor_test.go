package feed

import (
	"encoding/base64"
	"testing"

	"opencanvas-service/apperror"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCursorRoundTrip(t *testing.T) {
	id := primitive.NewObjectID()
	for _, score := range []float64{0, 47.39123, -3.5, 1e-9, 123456.789} {
		token := EncodeCursor(Cursor{Score: score, LastID: id})
		got, err := DecodeCursor(token)
		if err != nil {
			t.Fatalf("DecodeCursor(%q) error: %v", token, err)
		}
		if got.Score != score || got.LastID != id {
			t.Errorf("round trip = %+v, want score %v id %v", got, score, id.Hex())
		}
	}
}

func TestDecodeCursorEmpty(t *testing.T) {
	c, err := DecodeCursor("")
	if err != nil || c != nil {
		t.Fatalf("DecodeCursor(\"\") = %v, %v; want nil, nil", c, err)
	}
}

func TestDecodeCursorRejectsMalformed(t *testing.T) {
	enc := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

	cases := map[string]string{
		"not base64":       "%%%not-base64%%%",
		"not json":         enc("hello"),
		"missing score":    enc(`{"lastId":"65f000000000000000000001"}`),
		"string score":     enc(`{"score":"12","lastId":"65f000000000000000000001"}`),
		"bad id":           enc(`{"score":1,"lastId":"xyz"}`),
		"missing id":       enc(`{"score":1}`),
		"trailing garbage": enc(`{"score":1,"lastId":"65f000000000000000000001"}xx`),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeCursor(token)
			if !apperror.Is(err, apperror.KindValidation) {
				t.Fatalf("DecodeCursor error = %v, want validation error", err)
			}
			if apperror.MessageOf(err) != "Invalid cursor format" {
				t.Errorf("message = %q", apperror.MessageOf(err))
			}
		})
	}
}

func TestAfterOrdering(t *testing.T) {
	low, _ := primitive.ObjectIDFromHex("65f000000000000000000001")
	high, _ := primitive.ObjectIDFromHex("65f000000000000000000002")
	c := &Cursor{Score: 10, LastID: high}

	if !After(c, 9, high) {
		t.Errorf("lower score must come after cursor")
	}
	if After(c, 11, low) {
		t.Errorf("higher score must not come after cursor")
	}
	if !After(c, 10, low) {
		t.Errorf("equal score with lower id must come after cursor")
	}
	if After(c, 10, high) {
		t.Errorf("the cursor row itself must not be repeated")
	}
	if !After(nil, -100, low) {
		t.Errorf("nil cursor admits every row")
	}
}

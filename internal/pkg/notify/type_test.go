package notify

import (
	"testing"

	"github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson"
)

func TestTypeAttributes(t *testing.T) {
	tests := []struct {
		typ       Type
		name      string
		priority  int
		batchable bool
		critical  bool
	}{
		{TypeNewMessage, "new_message", 7, false, false},
		{TypeListingViewed, "listing_viewed", 2, true, false},
		{TypeListingLiked, "listing_liked", 3, true, false},
		{TypeProfileViewed, "profile_viewed", 2, true, false},
		{TypeListingExpired, "listing_expired", 8, false, true},
		{TypePaymentCompleted, "payment_completed", 9, false, true},
		{TypePaymentFailed, "payment_failed", 10, false, true},
		{TypeAccountActivity, "account_activity", 9, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.typ.String(); got != tt.name {
				t.Errorf("String() = %q, want %q", got, tt.name)
			}
			if got := tt.typ.Priority(); got != tt.priority {
				t.Errorf("Priority() = %d, want %d", got, tt.priority)
			}
			if got := tt.typ.Batchable(); got != tt.batchable {
				t.Errorf("Batchable() = %v, want %v", got, tt.batchable)
			}
			if got := tt.typ.Critical(); got != tt.critical {
				t.Errorf("Critical() = %v, want %v", got, tt.critical)
			}
		})
	}
}

func TestPrioritiesInRange(t *testing.T) {
	for _, typ := range AllTypes() {
		if p := typ.Priority(); p < 1 || p > 10 {
			t.Errorf("%s priority %d out of range", typ, p)
		}
		if parsed, ok := ParseType(typ.String()); !ok || parsed != typ {
			t.Errorf("ParseType(%q) = %v, %v", typ.String(), parsed, ok)
		}
	}
}

func TestParseTypeRejectsUnknown(t *testing.T) {
	for _, name := range []string{"", "unknown", "listing_sold"} {
		if _, ok := ParseType(name); ok {
			t.Errorf("ParseType(%q) accepted", name)
		}
	}
	if Type(200).Valid() {
		t.Fatalf("out of range type reported valid")
	}
	if Type(200).String() != "unknown" {
		t.Fatalf("out of range type should render as unknown")
	}
}

func TestGroupWording(t *testing.T) {
	if got := TypeListingViewed.GroupTitle(5); got != "5 new views" {
		t.Fatalf("GroupTitle = %q", got)
	}
	if got := TypeNewMessage.GroupMessage(3); got != "You have 3 new notifications" {
		t.Fatalf("GroupMessage fallback = %q", got)
	}
}

func TestTypeEncoding(t *testing.T) {
	type doc struct {
		Type Type `json:"type" bson:"type"`
	}

	raw, err := json.Marshal(doc{Type: TypePaymentFailed})
	if err != nil {
		t.Fatalf("json marshal: %v", err)
	}
	if string(raw) != `{"type":"payment_failed"}` {
		t.Fatalf("json = %s", raw)
	}
	var back doc
	if err := json.Unmarshal(raw, &back); err != nil || back.Type != TypePaymentFailed {
		t.Fatalf("json round trip = %v, %v", back.Type, err)
	}
	if err := json.Unmarshal([]byte(`{"type":"bogus"}`), &back); err == nil {
		t.Fatalf("expected error for unknown json type")
	}

	b, err := bson.Marshal(doc{Type: TypeListingLiked})
	if err != nil {
		t.Fatalf("bson marshal: %v", err)
	}
	if got := bson.Raw(b).Lookup("type").StringValue(); got != "listing_liked" {
		t.Fatalf("bson stored %q", got)
	}
	var fromBSON doc
	if err := bson.Unmarshal(b, &fromBSON); err != nil || fromBSON.Type != TypeListingLiked {
		t.Fatalf("bson round trip = %v, %v", fromBSON.Type, err)
	}
}

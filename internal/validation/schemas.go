package validation

import "github.com/tbourn/go-chat-sync/internal/domain"

// DefaultSchemas returns the schema of every persisted kind.
func DefaultSchemas() []Schema {
	return []Schema{
		{
			Kind: domain.KindChat,
			Fields: []Field{
				{Name: "id", Type: Int, Required: true, Rules: "ne=0"},
				{Name: "type", Type: String, Required: true, Rules: "oneof=private group supergroup channel"},
				{Name: "title", Type: String, Rules: "max=255"},
				{Name: "username", Type: String, Rules: "max=64"},
				{Name: "description", Type: String},
				{Name: "invite_link", Type: String, Rules: "omitempty,url,max=255"},
				{Name: "small_photo_id", Type: String, Rules: "max=255"},
				{Name: "big_photo_id", Type: String, Rules: "max=255"},
				{Name: "is_take_over", Type: Bool},
				{Name: "left", Type: Bool},
			},
		},
		{
			Kind: domain.KindTerm,
			Fields: []Field{
				{Name: "id", Type: Int, Required: true, Rules: "gt=0"},
				{Name: "content", Type: String, Required: true},
			},
		},
		{
			Kind: domain.KindPermission,
			Fields: []Field{
				{Name: "chat_id", Type: Int, Required: true, Rules: "ne=0"},
				{Name: "user_id", Type: Int, Required: true, Rules: "gt=0"},
				{Name: "flags", Type: Map},
			},
		},
		{
			Kind: domain.KindSponsor,
			Fields: []Field{
				{Name: "title", Type: String, Required: true, Rules: "min=1,max=64"},
				{Name: "avatar", Type: String, Rules: "max=255"},
				{Name: "homepage", Type: String, Rules: "omitempty,url,max=255"},
				{Name: "introduction", Type: String},
				{Name: "contact", Type: String, Rules: "max=128"},
			},
		},
		{
			Kind: domain.KindSponsorshipHistory,
			Fields: []Field{
				{Name: "sponsor_id", Type: String, Nullable: true, Rules: "omitempty,uuid"},
				{Name: "expected_to", Type: String, Rules: "max=64"},
				{Name: "amount", Type: Int, Required: true, Rules: "gte=0"},
				{Name: "has_reached", Type: Bool},
				{Name: "reached_at", Type: Time, Nullable: true},
				{Name: "hidden", Type: Bool},
			},
		},
	}
}

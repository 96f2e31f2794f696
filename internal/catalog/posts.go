package catalog

import "strings"

// DefaultBlacklist lists tags whose presence drops a post outright.
var DefaultBlacklist = []string{"gore", "scat", "watersports", "young", "loli", "shota"}

// PostColumns returns the column schema for a posts catalog export. The
// blacklist filters rows by tag; animations and anything not plain png/jpg
// are removed via the file extension predicate, and deleted, pending and
// flagged posts are dropped by their excluded boolean flag columns.
func PostColumns(blacklist []string) []Column {
	blacklisted := make(map[string]bool, len(blacklist))
	for _, tag := range blacklist {
		blacklisted[tag] = true
	}

	flagged := func(raw string) bool { return raw == "t" }

	return []Column{
		{Name: "id", Kind: Int},
		{Name: "created_at", Kind: Date},
		{Name: "md5", Kind: String},
		{Name: "sources", Kind: List, From: "source", Sep: "\n"},
		{Name: "rating", Kind: String},
		{Name: "image_width", Kind: Int},
		{Name: "image_height", Kind: Int},
		{Name: "tags", Kind: List, From: "tag_string", Sep: " ",
			SkipIf: func(raw string) bool {
				for _, tag := range strings.Fields(raw) {
					if blacklisted[tag] {
						return true
					}
				}
				return false
			}},
		{Name: "fav_count", Kind: Int},
		{Name: "file_ext", Kind: String,
			SkipIf: func(raw string) bool { return raw != "png" && raw != "jpg" }},
		{Name: "change_seq", Kind: Int},
		{Name: "file_size", Kind: Int},
		{Name: "comment_count", Kind: Int},
		{Name: "description", Kind: String},
		{Name: "updated_at", Kind: Date},
		{Name: "is_deleted", Kind: Bool, True: "t", SkipIf: flagged, Exclude: true},
		{Name: "is_pending", Kind: Bool, True: "t", SkipIf: flagged, Exclude: true},
		{Name: "is_flagged", Kind: Bool, True: "t", SkipIf: flagged, Exclude: true},
		{Name: "score", Kind: Int},
		{Name: "up_score", Kind: Int},
		{Name: "down_score", Kind: Int},
		{Name: "is_processed", Kind: LiteralFalse},
	}
}

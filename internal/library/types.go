package library

// Novel is one directory of chapter files under the import root.
type Novel struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Path         string `json:"path"`
	ChapterCount int    `json:"chapter_count"`
}

// ChapterFile is one chapter text file found during a scan.
type ChapterFile struct {
	NovelID  string `json:"novel_id"`
	Path     string `json:"path"`
	Position int    `json:"position"`
	Title    string `json:"title"`
}

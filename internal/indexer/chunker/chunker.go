// Package chunker splits source files into code chunks for embedding.
//
// Known languages are split at top-level declaration boundaries with a few
// lines of surrounding context; everything else falls back to fixed-size
// line windows with overlap.
package chunker

import (
	"path/filepath"
	"regexp"
	"strings"
)

// ChunkType classifies what a chunk contains
type ChunkType string

const (
	TypeFunction ChunkType = "function"
	TypeClass    ChunkType = "class"
	TypeModule   ChunkType = "module"
	TypeOther    ChunkType = "other"
)

// Chunk is a contiguous slice of a source file
type Chunk struct {
	Content   string
	LineStart int // 1-based, inclusive
	LineEnd   int // 1-based, inclusive
	Type      ChunkType
	Language  string
}

// Config holds chunking parameters
type Config struct {
	// MaxLines is the window size for fallback chunking
	MaxLines int

	// Overlap is the number of lines shared between consecutive fallback
	// chunks
	Overlap int

	// ContextLines extends declaration chunks in both directions
	ContextLines int
}

// DefaultConfig returns the default chunking parameters
func DefaultConfig() Config {
	return Config{
		MaxLines:     50,
		Overlap:      10,
		ContextLines: 3,
	}
}

// Chunker splits source files into chunks
type Chunker struct {
	config Config
}

// New creates a chunker. Zero and invalid values take the defaults, so a
// zero Config chunks like DefaultConfig.
func New(cfg Config) *Chunker {
	def := DefaultConfig()
	if cfg.MaxLines <= 0 {
		cfg.MaxLines = def.MaxLines
	}
	if cfg.Overlap <= 0 {
		cfg.Overlap = def.Overlap
	}
	if cfg.Overlap >= cfg.MaxLines {
		cfg.Overlap = cfg.MaxLines / 2
	}
	if cfg.ContextLines <= 0 {
		cfg.ContextLines = def.ContextLines
	}
	return &Chunker{config: cfg}
}

var extLanguages = map[string]string{
	".go":    "go",
	".rs":    "rust",
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".mjs":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".java":  "java",
	".rb":    "ruby",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cc":    "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".php":   "php",
	".swift": "swift",
	".kt":    "kotlin",
	".sh":    "shell",
	".md":    "markdown",
	".toml":  "toml",
	".yaml":  "yaml",
	".yml":   "yaml",
	".json":  "json",
	".sql":   "sql",
}

// declPatterns matches top-level declaration starts per language
var declPatterns = map[string]*regexp.Regexp{
	"go":         regexp.MustCompile(`^(func |type \w+ (struct|interface)\b|var \(|const \()`),
	"rust":       regexp.MustCompile(`^(pub(\(\w+\))? )?(async )?(fn|struct|enum|trait|impl|mod|macro_rules!)\b`),
	"python":     regexp.MustCompile(`^(def |class |async def )`),
	"javascript": regexp.MustCompile(`^(export )?(default )?(async )?(function|class)\b|^(export )?const \w+ = (async )?(\(|function)`),
	"typescript": regexp.MustCompile(`^(export )?(default )?(async )?(function|class|interface|enum)\b|^(export )?const \w+ = (async )?(\(|function)`),
	"java":       regexp.MustCompile(`^(\s{0,4})(public|private|protected)\s+(static\s+)?[\w<>\[\]]+\s+\w+\s*\(|^(public |abstract |final )*(class|interface|enum)\b`),
	"ruby":       regexp.MustCompile(`^(def |class |module )`),
	"c":          regexp.MustCompile(`^\w[\w\s\*]*\([^;]*$|^(struct|enum|union|typedef)\b`),
	"cpp":        regexp.MustCompile(`^\w[\w\s\*:<>~]*\([^;]*$|^(struct|enum|union|typedef|class|namespace|template)\b`),
}

// classKeywords maps declaration keywords to the class chunk type
var classKeywords = regexp.MustCompile(`\b(class|struct|interface|trait|enum|impl|module|namespace)\b`)

// DetectLanguage guesses the language from the file extension, falling back
// to the shebang line for extensionless scripts. Returns "" when unknown.
func DetectLanguage(path, content string) string {
	if lang, ok := extLanguages[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}

	if strings.HasPrefix(content, "#!") {
		firstLine, _, _ := strings.Cut(content, "\n")
		switch {
		case strings.Contains(firstLine, "python"):
			return "python"
		case strings.Contains(firstLine, "node"):
			return "javascript"
		case strings.Contains(firstLine, "sh"):
			return "shell"
		}
	}
	return ""
}

// Split chunks the content of a source file
func (c *Chunker) Split(path, content string) []Chunk {
	lang := DetectLanguage(path, content)
	lines := strings.Split(content, "\n")

	// Drop a single trailing empty line from the final newline.
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	if len(lines) == 0 {
		return nil
	}

	// Small files become one module chunk.
	if len(lines) <= c.config.MaxLines {
		return []Chunk{{
			Content:   strings.Join(lines, "\n"),
			LineStart: 1,
			LineEnd:   len(lines),
			Type:      TypeModule,
			Language:  lang,
		}}
	}

	if pattern, ok := declPatterns[lang]; ok {
		if chunks := c.splitByDecls(lines, lang, pattern); len(chunks) > 1 {
			return chunks
		}
	}

	return c.splitFixed(lines, lang)
}

// splitByDecls cuts at declaration boundaries, extending each chunk by
// ContextLines in both directions.
func (c *Chunker) splitByDecls(lines []string, lang string, pattern *regexp.Regexp) []Chunk {
	var boundaries []int
	for i, line := range lines {
		if pattern.MatchString(line) {
			boundaries = append(boundaries, i)
		}
	}
	if len(boundaries) == 0 {
		return nil
	}

	var chunks []Chunk

	// Leading lines before the first declaration (imports, file comments).
	if boundaries[0] > 0 {
		chunks = append(chunks, Chunk{
			Content:   strings.Join(lines[:boundaries[0]], "\n"),
			LineStart: 1,
			LineEnd:   boundaries[0],
			Type:      TypeOther,
			Language:  lang,
		})
	}

	for i, start := range boundaries {
		end := len(lines)
		if i+1 < len(boundaries) {
			end = boundaries[i+1]
		}

		ctxStart := start - c.config.ContextLines
		if ctxStart < 0 {
			ctxStart = 0
		}
		ctxEnd := end + c.config.ContextLines
		if ctxEnd > len(lines) {
			ctxEnd = len(lines)
		}

		chunkType := TypeFunction
		if classKeywords.MatchString(lines[start]) {
			chunkType = TypeClass
		}

		chunks = append(chunks, Chunk{
			Content:   strings.Join(lines[ctxStart:ctxEnd], "\n"),
			LineStart: ctxStart + 1,
			LineEnd:   ctxEnd,
			Type:      chunkType,
			Language:  lang,
		})
	}

	return chunks
}

// splitFixed chunks lines into overlapping fixed-size windows
func (c *Chunker) splitFixed(lines []string, lang string) []Chunk {
	var chunks []Chunk
	step := c.config.MaxLines - c.config.Overlap

	for start := 0; start < len(lines); start += step {
		end := start + c.config.MaxLines
		if end > len(lines) {
			end = len(lines)
		}

		chunks = append(chunks, Chunk{
			Content:   strings.Join(lines[start:end], "\n"),
			LineStart: start + 1,
			LineEnd:   end,
			Type:      TypeOther,
			Language:  lang,
		})

		if end >= len(lines) {
			break
		}
	}

	return chunks
}

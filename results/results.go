// Package results writes translated sentence pairs to a session result
// file, in either parallel (pair by pair) or separate (all originals,
// then all translations) layout, and can convert existing result files
// between the two.
package results

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"livesub/config"
	"livesub/log"
)

const (
	FormatParallel = "parallel"
	FormatSeparate = "separate"

	originalLabel        = "Original: "
	translatedLabel      = "Translation: "
	allOriginalsLabel    = "[All Originals]"
	allTranslationsLabel = "[All Translations]"

	filePrefix = "translate_result_"
	renameCap  = 999
)

var headerSeparator = strings.Repeat("=", 50)

// Recorder accumulates sentence pairs and mirrors them to a result
// file. The file is created lazily on the first recorded pair, so an
// empty session leaves no artifact.
type Recorder struct {
	mu sync.Mutex

	path        string
	format      string
	sourceLang  string
	targetLang  string
	initialized bool

	originals    []string
	translations []string

	now func() time.Time
}

// NewRecorder reserves a unique result file path under cfg.ResultDir.
// The file itself is not created yet.
func NewRecorder(cfg *config.Config) (*Recorder, error) {
	if err := os.MkdirAll(cfg.ResultDir, 0o755); err != nil {
		return nil, fmt.Errorf("results: create dir: %w", err)
	}

	format := cfg.OutputFormat
	if format != FormatSeparate {
		format = FormatParallel
	}

	now := time.Now()
	base := filepath.Join(cfg.ResultDir, filePrefix+now.Format("20060102_150405"))
	path := base + ".txt"
	for counter := 1; ; counter++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		if counter > renameCap {
			return nil, fmt.Errorf("results: could not find a free file name under %s", cfg.ResultDir)
		}
		path = fmt.Sprintf("%s(%d).txt", base, counter)
	}

	return &Recorder{
		path:       path,
		format:     format,
		sourceLang: cfg.SourceLang,
		targetLang: cfg.TargetLang,
		now:        time.Now,
	}, nil
}

func (r *Recorder) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

// Record stores one sentence pair and appends it to the result file.
// Pairs with an empty side are rejected.
func (r *Recorder) Record(original, translated string) bool {
	cleanOriginal := cleanText(original)
	cleanTranslated := cleanText(translated)
	if cleanOriginal == "" || cleanTranslated == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.originals = append(r.originals, cleanOriginal)
	r.translations = append(r.translations, cleanTranslated)

	if !r.initialized {
		if err := r.writeHeader(); err != nil {
			log.Errorf("results: write header: %v", err)
			return false
		}
		r.initialized = true
	}

	var err error
	if r.format == FormatParallel {
		err = r.appendPair(cleanOriginal, cleanTranslated)
	} else {
		err = r.rewriteSeparate()
	}
	if err != nil {
		log.Errorf("results: write pair: %v", err)
		return false
	}
	return true
}

func cleanText(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
}

func (r *Recorder) header() string {
	name := "Original-Translation Parallel"
	if r.format == FormatSeparate {
		name = "Original-Translation Separate"
	}
	return fmt.Sprintf("%s - %s\nSource language: %s -> Target language: %s\n%s\n\n",
		name, r.now().Format("2006-01-02 15:04:05"),
		r.sourceLang, r.targetLang, headerSeparator)
}

func (r *Recorder) writeHeader() error {
	if info, err := os.Stat(r.path); err == nil && info.Size() > 0 {
		return nil
	}
	return os.WriteFile(r.path, []byte(r.header()), 0o644)
}

func (r *Recorder) appendPair(original, translated string) error {
	f, err := os.OpenFile(r.path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "%s%s\n%s%s\n\n", originalLabel, original, translatedLabel, translated)
	return err
}

func (r *Recorder) rewriteSeparate() error {
	var b strings.Builder
	b.WriteString(r.header())
	b.WriteString(allOriginalsLabel + "\n")
	b.WriteString(strings.Join(r.originals, "\n") + "\n")
	b.WriteString("\n" + allTranslationsLabel + "\n")
	b.WriteString(strings.Join(r.translations, "\n") + "\n")
	return os.WriteFile(r.path, []byte(b.String()), 0o644)
}

// ReportStatus logs the final outcome and removes the result file when
// the session produced no pairs.
func (r *Recorder) ReportStatus() {
	r.mu.Lock()
	defer r.mu.Unlock()

	hasPairs := len(r.translations) > 0
	_, statErr := os.Stat(r.path)
	fileExists := statErr == nil

	if fileExists && !hasPairs {
		if err := os.Remove(r.path); err != nil {
			log.Errorf("results: remove empty file: %v", err)
		} else {
			log.Infof("removed empty result file %s", r.path)
		}
		fileExists = false
	}

	if fileExists && hasPairs {
		log.Infof("translation result saved to %s (%d sentences)", r.path, len(r.translations))
	} else {
		log.Info("no translation result to save")
	}
}

// Pairs returns the recorded originals and translations, index
// aligned.
func (r *Recorder) Pairs() ([]string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := make([]string, len(r.originals))
	t := make([]string, len(r.translations))
	copy(o, r.originals)
	copy(t, r.translations)
	return o, t
}

// ConvertFile rewrites one result file into newFormat. The file's
// current layout is detected from its body.
func ConvertFile(path, newFormat string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("results: read %s: %w", path, err)
	}
	content := string(data)

	sep := strings.Index(content, headerSeparator)
	if sep == -1 {
		return fmt.Errorf("results: %s has no header", path)
	}
	headerEnd := sep + len(headerSeparator)
	header := content[:headerEnd] + "\n\n"
	body := strings.TrimSpace(content[headerEnd:])

	originals, translations := parseParallel(body)
	if len(originals) == 0 {
		originals, translations = parseSeparate(body)
	}
	if len(originals) == 0 || len(translations) == 0 {
		return fmt.Errorf("results: %s has no translation pairs", path)
	}
	if len(translations) < len(originals) {
		originals = originals[:len(translations)]
	} else {
		translations = translations[:len(originals)]
	}

	var b strings.Builder
	b.WriteString(header)
	if newFormat == FormatParallel {
		for i := range originals {
			fmt.Fprintf(&b, "%s%s\n%s%s\n\n", originalLabel, originals[i], translatedLabel, translations[i])
		}
	} else {
		b.WriteString(allOriginalsLabel + "\n")
		b.WriteString(strings.Join(originals, "\n") + "\n")
		b.WriteString("\n" + allTranslationsLabel + "\n")
		b.WriteString(strings.Join(translations, "\n") + "\n")
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// ConvertDir converts every result file under dir. Returns the number
// converted and the number found.
func ConvertDir(dir, newFormat string) (converted, total int, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("results: read dir: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, ".txt") {
			continue
		}
		total++
		if err := ConvertFile(filepath.Join(dir, name), newFormat); err != nil {
			log.Warnf("%v", err)
			continue
		}
		converted++
	}
	return converted, total, nil
}

func parseParallel(body string) (originals, translations []string) {
	var pendingOriginal string
	var havePending bool
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, originalLabel):
			pendingOriginal = strings.TrimPrefix(line, originalLabel)
			havePending = true
		case strings.HasPrefix(line, translatedLabel) && havePending:
			translated := strings.TrimPrefix(line, translatedLabel)
			if pendingOriginal != "" && translated != "" {
				originals = append(originals, pendingOriginal)
				translations = append(translations, translated)
			}
			havePending = false
		}
	}
	return originals, translations
}

func parseSeparate(body string) (originals, translations []string) {
	origPos := strings.Index(body, allOriginalsLabel)
	transPos := strings.Index(body, allTranslationsLabel)
	if origPos == -1 || transPos == -1 || origPos >= transPos {
		return nil, nil
	}
	collect := func(block string) []string {
		var out []string
		for _, line := range strings.Split(block, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				out = append(out, line)
			}
		}
		return out
	}
	originals = collect(body[origPos+len(allOriginalsLabel) : transPos])
	translations = collect(body[transPos+len(allTranslationsLabel):])
	return originals, translations
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/kobzarvs/qdoc/internal/document"
	"github.com/kobzarvs/qdoc/internal/linestream"
)

type DocumentOptions struct {
	Multiline          bool `toml:"multiline"`
	ReadOnly           bool `toml:"read-only"`
	AutodetectEncoding bool `toml:"autodetect-encoding"`
	MaxUndo            int  `toml:"max-undo"`
	CamelCaseWords     bool `toml:"camel-case-words"`
	TabWidth           int  `toml:"tab-width"`
	// Files larger than this are loaded without syntax highlighting.
	MaxHighlightBytes int64 `toml:"max-highlight-bytes"`
}

type SaveOptions struct {
	Encoding   string `toml:"encoding"`
	LineEnding string `toml:"line-ending"`
	BOM        bool   `toml:"bom"`
	// KeepFormat writes files back in the format they were loaded with
	// and only applies the values above to new files.
	KeepFormat bool `toml:"keep-format"`
}

type SessionOptions struct {
	Enabled  bool   `toml:"enabled"`
	Autosave string `toml:"autosave"`
}

type WatchOptions struct {
	Debounce string `toml:"debounce"`
}

type Config struct {
	Document DocumentOptions `toml:"document"`
	Save     SaveOptions     `toml:"save"`
	Session  SessionOptions  `toml:"session"`
	Watch    WatchOptions    `toml:"watch"`
}

func Default() Config {
	return Config{
		Document: DocumentOptions{
			Multiline:          true,
			AutodetectEncoding: true,
			TabWidth:           4,
			MaxHighlightBytes:  8 << 20,
		},
		Save: SaveOptions{
			Encoding:   "utf-8",
			LineEnding: linestream.PlatformLineEnding().String(),
			KeepFormat: true,
		},
		Session: SessionOptions{
			Enabled:  true,
			Autosave: "30s",
		},
		Watch: WatchOptions{
			Debounce: "200ms",
		},
	}
}

// Load reads config.toml over the defaults. A missing file is not an error.
func Load() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Default(), err
	}
	return LoadFile(path)
}

func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	var userCfg Config
	md, err := toml.Decode(string(data), &userCfg)
	if err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}

	if md.IsDefined("document", "multiline") {
		cfg.Document.Multiline = userCfg.Document.Multiline
	}
	if md.IsDefined("document", "read-only") {
		cfg.Document.ReadOnly = userCfg.Document.ReadOnly
	}
	if md.IsDefined("document", "autodetect-encoding") {
		cfg.Document.AutodetectEncoding = userCfg.Document.AutodetectEncoding
	}
	if userCfg.Document.MaxUndo > 0 {
		cfg.Document.MaxUndo = userCfg.Document.MaxUndo
	}
	if md.IsDefined("document", "camel-case-words") {
		cfg.Document.CamelCaseWords = userCfg.Document.CamelCaseWords
	}
	if userCfg.Document.TabWidth > 0 {
		cfg.Document.TabWidth = userCfg.Document.TabWidth
	}
	if md.IsDefined("document", "max-highlight-bytes") {
		cfg.Document.MaxHighlightBytes = userCfg.Document.MaxHighlightBytes
	}
	if userCfg.Save.Encoding != "" {
		cfg.Save.Encoding = userCfg.Save.Encoding
	}
	if userCfg.Save.LineEnding != "" {
		cfg.Save.LineEnding = userCfg.Save.LineEnding
	}
	if md.IsDefined("save", "bom") {
		cfg.Save.BOM = userCfg.Save.BOM
	}
	if md.IsDefined("save", "keep-format") {
		cfg.Save.KeepFormat = userCfg.Save.KeepFormat
	}
	if md.IsDefined("session", "enabled") {
		cfg.Session.Enabled = userCfg.Session.Enabled
	}
	if userCfg.Session.Autosave != "" {
		cfg.Session.Autosave = userCfg.Session.Autosave
	}
	if userCfg.Watch.Debounce != "" {
		cfg.Watch.Debounce = userCfg.Watch.Debounce
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the values that are parsed lazily.
func (c Config) Validate() error {
	if _, err := c.SaveFormat(); err != nil {
		return err
	}
	if _, err := c.AutosaveInterval(); err != nil {
		return err
	}
	if _, err := c.DebounceInterval(); err != nil {
		return err
	}
	return nil
}

func (c Config) DocumentOptions() document.Options {
	return document.Options{
		Multiline:          c.Document.Multiline,
		ReadOnly:           c.Document.ReadOnly,
		AutodetectEncoding: c.Document.AutodetectEncoding,
		MaxUndo:            c.Document.MaxUndo,
		CamelCaseWords:     c.Document.CamelCaseWords,
	}
}

// SaveFormat is the format used for documents that have no detected format.
func (c Config) SaveFormat() (linestream.Format, error) {
	enc, err := linestream.ParseEncoding(c.Save.Encoding)
	if err != nil {
		return linestream.Format{}, fmt.Errorf("save.encoding: %w", err)
	}
	le, err := linestream.ParseLineEnding(c.Save.LineEnding)
	if err != nil {
		return linestream.Format{}, fmt.Errorf("save.line-ending: %w", err)
	}
	return linestream.Format{Encoding: enc, LineEnding: le, BOM: c.Save.BOM}.Normalized(), nil
}

func (c Config) AutosaveInterval() (time.Duration, error) {
	return parseDuration("session.autosave", c.Session.Autosave)
}

func (c Config) DebounceInterval() (time.Duration, error) {
	return parseDuration("watch.debounce", c.Watch.Debounce)
}

func parseDuration(key, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %s", key, s)
	}
	return d, nil
}

func ConfigDir() (string, error) {
	if v := os.Getenv("QDOC_CONFIG_HOME"); v != "" {
		return filepath.Clean(v), nil
	}
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "qdoc"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "qdoc"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// StateDir holds data written by qdoc itself, like the session file.
func StateDir() (string, error) {
	if v := os.Getenv("QDOC_STATE_HOME"); v != "" {
		return filepath.Clean(v), nil
	}
	if v := os.Getenv("XDG_STATE_HOME"); v != "" {
		return filepath.Join(v, "qdoc"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "qdoc"), nil
}

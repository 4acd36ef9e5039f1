package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/randalmurphal/bimcollab/internal/config"
	bcferrors "github.com/randalmurphal/bimcollab/internal/errors"
	"github.com/randalmurphal/bimcollab/internal/storage"
)

// loadConfig merges defaults, user and project config, environment, the
// --config file and global flags, in that order.
func (o *rootOptions) loadConfig() (*config.TrackedConfig, error) {
	tc, err := config.LoadWithSourcesFrom(o.dir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.cfgFile != "" {
		if err := config.MergeFile(tc, o.cfgFile, config.SourceFile); err != nil {
			return nil, err
		}
		// Env vars still win over an explicit file.
		config.ApplyEnvVars(tc)
	}
	if o.v != nil {
		for _, path := range config.Paths() {
			// Bound pflags only count as set once changed.
			if !o.v.IsSet(path) {
				continue
			}
			if config.Set(tc.Config, path, o.v.GetString(path)) {
				tc.SetSource(path, config.SourceFlag)
			}
		}
	}
	return tc, nil
}

// loadValidConfig is loadConfig followed by validation.
func (o *rootOptions) loadValidConfig() (*config.Config, error) {
	tc, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	if err := tc.Config.Validate(); err != nil {
		return nil, err
	}
	return tc.Config, nil
}

// openBackend opens the configured store. A relative SQLite path is taken
// relative to the project directory; the file must exist unless create is set.
func (o *rootOptions) openBackend(cfg *config.Config, create bool) (*storage.DatabaseBackend, error) {
	c := *cfg
	if c.Database.Driver == "sqlite" {
		if !filepath.IsAbs(c.Database.Path) {
			c.Database.Path = filepath.Join(o.dir, c.Database.Path)
		}
		if _, err := os.Stat(c.Database.Path); !create && os.IsNotExist(err) {
			return nil, bcferrors.ErrNotInitialized()
		}
	}
	backend, err := storage.NewBackend(&c)
	if err != nil {
		return nil, err
	}
	backend.SetLogger(o.log())
	return backend, nil
}

// setupLogging builds the command logger: text on a terminal, JSON
// otherwise, unless log.format says which.
func (o *rootOptions) setupLogging(cmd *cobra.Command) error {
	level, format := "info", "auto"
	if tc, err := o.loadConfig(); err == nil {
		level, format = tc.Config.Log.Level, tc.Config.Log.Format
	}
	switch {
	case o.verbose:
		level = "debug"
	case o.quiet:
		level = "error"
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	w := cmd.ErrOrStderr()
	handlerOpts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if format == "json" || (format != "text" && !isTerminal(w)) {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	o.logger = slog.New(handler)
	if o.installDefault {
		slog.SetDefault(o.logger)
	}
	return nil
}

// log returns the command logger, or the default before setupLogging ran.
func (o *rootOptions) log() *slog.Logger {
	if o.logger == nil {
		return slog.Default()
	}
	return o.logger
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// printer renders command output, styled when writing to a terminal.
type printer struct {
	out    io.Writer
	errOut io.Writer
	styled bool
	quiet  bool
}

func newPrinter(cmd *cobra.Command, quiet bool) *printer {
	return &printer{
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
		styled: isTerminal(cmd.OutOrStdout()),
		quiet:  quiet,
	}
}

func (p *printer) render(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

// summary prints a title and aligned label/value rows.
func (p *printer) summary(title string, rows [][2]string) {
	if p.quiet {
		return
	}
	width := 0
	for _, r := range rows {
		width = max(width, len(r[0]))
	}
	_, _ = fmt.Fprintln(p.out, p.render(titleStyle, title))
	for _, r := range rows {
		label := r[0] + ":" + strings.Repeat(" ", width-len(r[0]))
		_, _ = fmt.Fprintf(p.out, "  %s %s\n", p.render(labelStyle, label), r[1])
	}
}

func (p *printer) warn(format string, args ...any) {
	_, _ = fmt.Fprintln(p.errOut, p.render(warnStyle, "Warning: ")+fmt.Sprintf(format, args...))
}

func (p *printer) fail(format string, args ...any) {
	_, _ = fmt.Fprintln(p.errOut, p.render(errStyle, "Failed: ")+fmt.Sprintf(format, args...))
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

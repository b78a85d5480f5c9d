package commands

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/marcus/morningshift/internal/config"
	"github.com/marcus/morningshift/internal/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View logs",
	Long: `View morningshift logs.

Displays recent log entries from logging.path. Use --follow to stream new
entries, --component to show one component (timer, manager, daemon, ...).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tail, _ := cmd.Flags().GetInt("tail")
		follow, _ := cmd.Flags().GetBool("follow")
		export, _ := cmd.Flags().GetString("export")
		component, _ := cmd.Flags().GetString("component")

		logDir := config.DefaultLogPath
		if cfg, err := loadConfig(cmd); err == nil {
			logDir = cfg.Logging.Path
		}
		v := logView{
			dir:       expandHome(logDir),
			component: component,
			out:       cmd.OutOrStdout(),
		}

		if export != "" {
			return v.export(export)
		}
		if follow {
			return v.follow(cmd, tail)
		}
		return v.show(tail)
	},
}

func init() {
	logsCmd.Flags().IntP("tail", "n", 50, "Number of log lines to show")
	logsCmd.Flags().BoolP("follow", "f", false, "Follow log output")
	logsCmd.Flags().StringP("export", "e", "", "Export logs to file")
	logsCmd.Flags().StringP("component", "c", "", "Only show entries from this component")
	rootCmd.AddCommand(logsCmd)
}

// logEntry is the subset of a JSON log line that gets rendered.
type logEntry struct {
	Level     string    `json:"level"`
	Time      time.Time `json:"time"`
	Message   string    `json:"message"`
	Component string    `json:"component,omitempty"`
	Preset    string    `json:"preset,omitempty"`
	Error     string    `json:"error,omitempty"`
}

type logView struct {
	dir       string
	component string
	out       io.Writer
}

func (v logView) files() ([]string, error) {
	files, err := logging.ListLogFiles(v.dir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading log dir: %w", err)
	}
	return files, nil
}

func (v logView) show(n int) error {
	files, err := v.files()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(v.out, "No log files found.")
		return nil
	}
	for _, line := range v.lastLines(files, n) {
		v.print(line)
	}
	return nil
}

// lastLines returns the last n matching lines across files, which are
// ordered newest first.
func (v logView) lastLines(files []string, n int) []string {
	var lines []string
	for _, file := range files {
		if len(lines) >= n {
			break
		}
		fileLines := v.readMatching(file)
		remaining := n - len(lines)
		if len(fileLines) > remaining {
			fileLines = fileLines[len(fileLines)-remaining:]
		}
		lines = append(fileLines, lines...)
	}
	return lines
}

func (v logView) readMatching(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer func() { _ = f.Close() }()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if v.matches(scanner.Text()) {
			lines = append(lines, scanner.Text())
		}
	}
	return lines
}

func (v logView) matches(line string) bool {
	if v.component == "" {
		return true
	}
	var entry logEntry
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		return false
	}
	return entry.Component == v.component
}

func (v logView) follow(cmd *cobra.Command, initialLines int) error {
	if err := os.MkdirAll(v.dir, 0755); err != nil {
		return fmt.Errorf("creating log dir: %w", err)
	}
	files, err := v.files()
	if err != nil {
		return err
	}
	if initialLines > 0 {
		for _, line := range v.lastLines(files, initialLines) {
			v.print(line)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.Add(v.dir); err != nil {
		return fmt.Errorf("watching log dir: %w", err)
	}

	current := ""
	var reader *bufio.Reader
	var file *os.File
	defer func() {
		if file != nil {
			_ = file.Close()
		}
	}()

	// open switches to today's file, positioned at its end.
	open := func() {
		path := filepath.Join(v.dir, "morningshift-"+time.Now().Format("2006-01-02")+".log")
		if path == current {
			return
		}
		f, err := os.Open(path)
		if err != nil {
			return
		}
		if file != nil {
			_ = file.Close()
		}
		_, _ = f.Seek(0, io.SeekEnd)
		file, reader, current = f, bufio.NewReader(f), path
	}
	open()

	fmt.Fprintln(v.out, "--- Following logs (Ctrl+C to exit) ---")

	for {
		select {
		case <-cmd.Context().Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			open()
			if !event.Has(fsnotify.Write) || reader == nil {
				continue
			}
			for {
				line, err := reader.ReadString('\n')
				if err != nil {
					break
				}
				line = strings.TrimSuffix(line, "\n")
				if v.matches(line) {
					v.print(line)
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watcher error: %v\n", err)
		}
	}
}

func (v logView) export(outFile string) error {
	files, err := v.files()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no log files found")
	}

	out, err := os.Create(outFile)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer func() { _ = out.Close() }()

	total := 0
	w := bufio.NewWriter(out)
	// Oldest first.
	for i := len(files) - 1; i >= 0; i-- {
		for _, line := range v.readMatching(files[i]) {
			_, _ = w.WriteString(line + "\n")
			total++
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing %s: %w", outFile, err)
	}

	fmt.Fprintf(v.out, "Exported %d log lines to %s\n", total, outFile)
	return nil
}

var levelStyles = map[string]lipgloss.Style{
	"debug": lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	"info":  lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	"warn":  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	"error": lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
}

func (v logView) print(line string) {
	var entry logEntry
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		fmt.Fprintln(v.out, line)
		return
	}

	var b strings.Builder
	b.WriteString(entry.Time.Format("15:04:05"))
	b.WriteString(" ")
	b.WriteString(formatLogLevel(entry.Level))
	if entry.Component != "" {
		fmt.Fprintf(&b, " [%s]", entry.Component)
	}
	b.WriteString(" ")
	b.WriteString(entry.Message)
	if entry.Preset != "" {
		fmt.Fprintf(&b, " preset=%s", entry.Preset)
	}
	if entry.Error != "" {
		fmt.Fprintf(&b, " error=%s", entry.Error)
	}
	fmt.Fprintln(v.out, b.String())
}

func formatLogLevel(level string) string {
	short := strings.ToUpper(level)
	switch level {
	case "debug":
		short = "DBG"
	case "info":
		short = "INF"
	case "warn":
		short = "WRN"
	case "error":
		short = "ERR"
	default:
		if len(short) > 3 {
			short = short[:3]
		}
	}
	if style, ok := levelStyles[level]; ok {
		return style.Render(short)
	}
	return short
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

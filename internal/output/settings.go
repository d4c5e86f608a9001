package output

import (
	"fmt"
	"strings"

	"github.com/tanq16/siesta/internal/settings"
)

func formatValue(v any) string {
	switch x := v.(type) {
	case bool:
		if x {
			return successStyle.Render("on")
		}
		return debugStyle.Render("off")
	default:
		return detailStyle.Render(fmt.Sprint(x))
	}
}

func RenderSummary(sections []settings.Section) string {
	var b strings.Builder
	for _, sec := range sections {
		b.WriteString(headerStyle.Render(strings.ToUpper(string(sec.Group))) + "\n")
		for _, e := range sec.Entries {
			b.WriteString(fmt.Sprintf("  %s %s %s\n", StyleSymbols["bullet"], keyStyle.Render(e.Label), formatValue(e.Value)))
		}
	}
	return b.String()
}

func RenderPresets(presets []settings.Preset) string {
	var b strings.Builder
	for _, p := range presets {
		b.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(p.Name), debugStyle.Render(p.Description)))
		b.WriteString(fmt.Sprintf("    %s audio %s %s video %sp %s concurrency %d %s cover %dpx\n",
			StyleSymbols["dot"], detailStyle.Render(string(p.Record.QualityAudio)),
			StyleSymbols["dot"], detailStyle.Render(string(p.Record.QualityVideo)),
			StyleSymbols["dot"], p.Record.DownloadsConcurrentMax,
			StyleSymbols["dot"], p.Record.MetadataCoverDimension))
	}
	return b.String()
}

func RenderViolations(violations []settings.Violation) string {
	if len(violations) == 0 {
		return successStyle.Render(StyleSymbols["pass"] + " settings are valid")
	}
	var b strings.Builder
	b.WriteString(errorStyle.Render(fmt.Sprintf("%s %d problem(s) found", StyleSymbols["fail"], len(violations))) + "\n")
	for _, v := range violations {
		b.WriteString(fmt.Sprintf("  %s %s %s\n", StyleSymbols["bullet"], keyStyle.Render(v.Field), warningStyle.Render(v.Reason)))
	}
	return b.String()
}

func RenderBackups(backups []settings.Backup) string {
	if len(backups) == 0 {
		return debugStyle.Render("no backups")
	}
	var b strings.Builder
	for _, bk := range backups {
		b.WriteString(fmt.Sprintf("  %s %s %s\n", StyleSymbols["bullet"], detailStyle.Render(bk.Name), debugStyle.Render(bk.CreatedAt.Format("2006-01-02 15:04:05"))))
	}
	return b.String()
}

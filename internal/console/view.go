package console

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/yuriy-kovalchuk/yk-dns-console/internal/dns"
)

var (
	styleTitle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	styleSubtitle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	styleError     = lipgloss.NewStyle().Foreground(lipgloss.Color("160")).Bold(true)
	stylePrompt    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	styleHeader    = lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Bold(true)
	styleHighlight = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	styleSpinner   = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
)

const rowFormat = "%-40s %-16s %s"

func (m model) View() string {
	var b strings.Builder

	b.WriteString(styleTitle.Render("DNS Records"))
	b.WriteString(styleSubtitle.Render(fmt.Sprintf("  %d record(s)", len(m.state.Records))))
	if m.state.Loading {
		b.WriteString("  " + m.spinner.View() + styleSubtitle.Render(" Refreshing..."))
	}
	b.WriteString("\n\n")

	if m.state.Error != "" {
		b.WriteString(styleError.Render("Error: "+m.state.Error) + styleSubtitle.Render("  (x to dismiss)") + "\n\n")
	}

	if m.state.FormOpen {
		b.WriteString(m.formView() + "\n")
	}

	if m.state.PendingRemoval != "" {
		b.WriteString(styleHighlight.Render(fmt.Sprintf("Delete DNS record for %s? (y/n)", m.state.PendingRemoval)) + "\n\n")
	}

	b.WriteString(m.tableView())
	b.WriteString("\n" + styleSubtitle.Render(m.helpLine()))
	return b.String()
}

func (m model) formView() string {
	var b strings.Builder
	b.WriteString(styleHeader.Render("Add DNS Record") + "\n")
	b.WriteString(styleSubtitle.Render("Domain") + "\n" + m.domain.View() + "\n")
	b.WriteString(styleSubtitle.Render("IP Address") + "\n" + m.ip.View() + "\n")
	b.WriteString(stylePrompt.Render("enter save · tab switch field · esc cancel") + "\n")
	return b.String()
}

func (m model) tableView() string {
	if len(m.state.Records) == 0 {
		if m.state.Loading {
			return styleSubtitle.Render("Loading records...") + "\n"
		}
		return styleSubtitle.Render("No DNS records found. Press a to add your first record.") + "\n"
	}

	var b strings.Builder
	b.WriteString("  " + styleHeader.Render(fmt.Sprintf(rowFormat, "DOMAIN", "IP ADDRESS", "TTL")) + "\n")
	for i, r := range m.state.Records {
		row := fmt.Sprintf(rowFormat, r.Domain, r.IP, ttlLabel(r.TTL))
		if i == m.cursor {
			b.WriteString(styleHighlight.Render("> "+row) + "\n")
			continue
		}
		b.WriteString("  " + row + "\n")
	}
	return b.String()
}

func (m model) helpLine() string {
	switch {
	case m.state.PendingRemoval != "":
		return "y confirm · n cancel"
	case m.state.FormOpen:
		return "ctrl+c quit"
	}
	refresh := "r refresh"
	if m.state.Loading {
		refresh = "Refreshing..."
	}
	return strings.Join([]string{refresh, "a add", "d delete", "↑/↓ select", "x dismiss error", "q quit"}, " · ")
}

func ttlLabel(ttl int) string {
	switch {
	case ttl == dns.NoExpirationTTL:
		return "no expiry"
	case ttl <= 0:
		return "-"
	}
	return strconv.Itoa(ttl) + "s"
}

package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/formbricks/promptrank/internal/models"
)

const maxPromptWidth = 60

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	topStyle    = cellStyle.Foreground(lipgloss.Color("212"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	emptyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newRankingTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			switch row {
			case table.HeaderRow:
				return headerStyle
			case 0:
				return topStyle
			default:
				return cellStyle
			}
		})
}

// renderSubmissions prints completed candidates with similarity as a percentage.
func renderSubmissions(ranked []models.RankedSubmission) string {
	if len(ranked) == 0 {
		return emptyStyle.Render("No ranked submissions.") + "\n"
	}

	t := newRankingTable("#", "Owner", "Similarity", "Prompt", "Image")
	for i, r := range ranked {
		t.Row(
			strconv.Itoa(i+1),
			r.OwnerName,
			fmt.Sprintf("%.2f%%", r.Similarity),
			truncate(r.Prompt, maxPromptWidth),
			deref(r.ImageFilename),
		)
	}

	return t.Render() + "\n"
}

// renderReport prints candidates of every status with the raw cosine score to 4 decimals.
func renderReport(ranked []models.RankedPrompt) string {
	if len(ranked) == 0 {
		return emptyStyle.Render("No candidates to rank.") + "\n"
	}

	t := newRankingTable("#", "Owner", "Similarity", "Status", "Prompt", "Image")
	for i, r := range ranked {
		t.Row(
			strconv.Itoa(i+1),
			r.Prompt.OwnerName,
			fmt.Sprintf("%.4f", r.Score),
			string(r.Prompt.Status),
			truncate(r.Prompt.Prompt, maxPromptWidth),
			deref(r.Prompt.ImageFilename),
		)
	}

	return t.Render() + "\n"
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}

	return string(runes[:n-1]) + "…"
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}

	return *s
}

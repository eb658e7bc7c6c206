package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/edumarques81/stellar-cloudplayer/internal/domain/catalog"
	"github.com/edumarques81/stellar-cloudplayer/internal/domain/player"
)

const (
	defaultWidth  = 100
	defaultHeight = 30
	sidebarWidth  = 16
	// rows used by everything except the song list
	chromeHeight = 12
)

// Styles
var (
	primaryColor    = lipgloss.Color("#1DB954")
	backgroundColor = lipgloss.Color("#191414")
	sidebarColor    = lipgloss.Color("#121212")
	textColor       = lipgloss.Color("#FFFFFF")
	mutedColor      = lipgloss.Color("#B3B3B3")
	accentColor     = lipgloss.Color("#1ED760")
	errorColor      = lipgloss.Color("#E22134")

	sidebarStyle = lipgloss.NewStyle().
			Background(sidebarColor).
			Foreground(textColor).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor)

	mainStyle = lipgloss.NewStyle().
			Background(backgroundColor).
			Foreground(textColor).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor)

	playerStyle = lipgloss.NewStyle().
			Foreground(textColor).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor)

	titleStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true)

	activeItemStyle = lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	nowPlayingStyle = lipgloss.NewStyle().Foreground(accentColor)
	mutedTextStyle  = lipgloss.NewStyle().Foreground(mutedColor)
	errorStyle      = lipgloss.NewStyle().Foreground(errorColor)

	searchBoxStyle = lipgloss.NewStyle().
			Foreground(textColor).
			Background(lipgloss.Color("#2A2A2A")).
			Padding(0, 1)
)

func (m Model) size() (int, int) {
	w, h := m.width, m.height
	if w <= 0 {
		w = defaultWidth
	}
	if h <= 0 {
		h = defaultHeight
	}
	return w, h
}

// listHeight is the number of list rows that fit on screen.
func (m Model) listHeight() int {
	_, h := m.size()
	return max(h-chromeHeight, 3)
}

func (m Model) View() string {
	width, _ := m.size()
	mainWidth := max(width-sidebarWidth-4, 20)

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		sidebarStyle.Width(sidebarWidth).Render(m.renderSidebar()),
		mainStyle.Width(mainWidth).Render(m.renderMain(mainWidth-2)),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		body,
		playerStyle.Width(width-2).Render(m.renderPlayer(width-4)),
		m.renderFooter(width),
	)
}

func (m Model) renderSidebar() string {
	current := m.snap.Browse.Filter.Tab
	switch current {
	case catalog.TabAlbumSongs:
		current = catalog.TabAlbums
	case catalog.TabArtistSongs:
		current = catalog.TabArtists
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Stellar"))
	b.WriteString("\n\n")
	for _, t := range sidebarTabs {
		if t == current {
			b.WriteString(activeItemStyle.Render("> " + tabTitles[t]))
		} else {
			b.WriteString("  " + tabTitles[t])
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	auth := m.snap.Auth
	if auth.LoggedIn {
		b.WriteString(mutedTextStyle.Render(truncate(auth.DisplayName, sidebarWidth-2)))
	} else {
		b.WriteString(mutedTextStyle.Render("Not signed in"))
	}
	return b.String()
}

func (m Model) renderMain(width int) string {
	var b strings.Builder

	if m.searching || m.search.Value() != "" {
		b.WriteString(searchBoxStyle.Render(m.search.View()))
	} else {
		b.WriteString(mutedTextStyle.Render("/ to search"))
	}
	b.WriteString("\n")
	b.WriteString(titleStyle.Render(truncate(m.heading(), width)))
	b.WriteString("\n")

	browse := m.snap.Browse
	rows := m.rows()
	switch {
	case browse.Loading && len(rows) == 0:
		b.WriteString(mutedTextStyle.Render("Loading songs..."))
	case browse.FetchError != "" && len(rows) == 0:
		b.WriteString(errorStyle.Render(truncate("Could not load songs: "+browse.FetchError, width)))
	case len(rows) == 0:
		b.WriteString(mutedTextStyle.Render(m.emptyMessage()))
	default:
		b.WriteString(m.renderList(rows, width))
	}
	return b.String()
}

func (m Model) heading() string {
	f := m.snap.Browse.Filter
	switch f.Tab {
	case catalog.TabAlbumSongs:
		return "Album: " + f.SelectedAlbum
	case catalog.TabArtistSongs:
		return "Artist: " + f.SelectedArtist
	}
	title := tabTitles[f.Tab]
	if f.Query != "" {
		title += fmt.Sprintf(" (matching %q)", f.Query)
	}
	return title
}

func (m Model) emptyMessage() string {
	switch m.snap.Browse.Filter.Tab {
	case catalog.TabFavorites:
		return "No favorites yet. Press f on a song to add it."
	case catalog.TabDownloads:
		return "No downloads yet. Press d on a song to save it."
	case catalog.TabSettings:
		return "Settings are available from the web controller."
	}
	return "No songs found."
}

func (m Model) renderList(rows []string, width int) string {
	end := min(m.offset+m.listHeight(), len(rows))
	playingID := m.snap.Playback.NowPlayingID
	songs := !m.indexTab()

	lines := make([]string, 0, end-m.offset)
	for i := m.offset; i < end; i++ {
		label := rows[i]
		if songs {
			label = songLine(m.snap.Browse.Songs[i], width-4)
		}

		prefix := "  "
		if songs && m.snap.Browse.Songs[i].ID == playingID && playingID != "" {
			prefix = "♪ "
		}
		line := truncate(prefix+label, width-2)

		switch {
		case i == m.cursor:
			lines = append(lines, activeItemStyle.Render("> "+line))
		case prefix != "  ":
			lines = append(lines, nowPlayingStyle.Render("  "+line))
		default:
			lines = append(lines, "  "+line)
		}
	}
	return strings.Join(lines, "\n")
}

// songLine renders "Title - Singer" padded to width with the album on the right.
func songLine(s catalog.Song, width int) string {
	left := s.Title
	if s.Singer != "" {
		left += " - " + s.Singer
	}
	if s.Album == "" || width < 40 {
		return left
	}
	albumWidth := width / 3
	left = runewidth.FillRight(truncate(left, width-albumWidth-1), width-albumWidth)
	return left + truncate(s.Album, albumWidth)
}

func (m Model) renderPlayer(width int) string {
	st := m.snap.Playback

	title := "Nothing playing"
	if st.Title != "" {
		title = st.Title
		if st.Singer != "" {
			title += " - " + st.Singer
		}
	}

	icon := "■"
	switch st.Status {
	case player.StatusPlaying:
		icon = "▶"
	case player.StatusPaused, player.StatusReady:
		icon = "⏸"
	case player.StatusResolving:
		icon = "…"
	}

	vol := fmt.Sprintf("vol %3d%%", int(math.Round(st.Volume*100)))
	if st.Muted {
		vol = "muted   "
	}

	top := runewidth.FillRight(truncate(icon+" "+title, width-len(vol)-1), width-len(vol)) + vol

	elapsed := formatTime(st.Progress)
	total := formatTime(st.Duration)
	barWidth := max(width-len(elapsed)-len(total)-2, 5)
	bottom := elapsed + " " + progressBar(barWidth, st.ProgressPercent()) + " " + total

	return top + "\n" + bottom
}

func (m Model) renderFooter(width int) string {
	help := "enter play/open • space pause • n/p next/prev • ←/→ seek • +/- vol • m mute • f fav • d download • tab switch • q quit"
	lines := []string{mutedTextStyle.Render(truncate(help, width))}
	if m.status != "" {
		lines = append([]string{truncate(m.status, width)}, lines...)
	}
	return strings.Join(lines, "\n")
}

// progressBar draws a width-cell bar filled to percent.
func progressBar(width, percent int) string {
	if width <= 0 {
		return ""
	}
	percent = min(max(percent, 0), 100)
	filled := width * percent / 100
	return nowPlayingStyle.Render(strings.Repeat("━", filled)) +
		mutedTextStyle.Render(strings.Repeat("─", width-filled))
}

// formatTime renders seconds as m:ss.
func formatTime(seconds float64) string {
	if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return "0:00"
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) > width {
		return runewidth.Truncate(s, width, "...")
	}
	return s
}

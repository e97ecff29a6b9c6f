package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cinema-booking-cli/booking"
	"cinema-booking-cli/model"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const intentTimeout = 20 * time.Second

// Session is the booking session the screen drives. *booking.Manager
// implements it.
type Session interface {
	Code() string
	Updates() <-chan booking.Snapshot
	Current() booking.Snapshot
	Done() <-chan struct{}
	ToggleSeat(ctx context.Context, id model.SeatID) error
	SubmitPurchase(ctx context.Context) error
	CancelSession(ctx context.Context) error
	ExtendHold(ctx context.Context) error
	Restart(ctx context.Context) error
	Refresh(ctx context.Context) error
	DismissNotice(ctx context.Context) error
	UpdatePayerInfo(ctx context.Context, name, phone, email string) error
	UpdatePaymentMethod(ctx context.Context, method model.PaymentMethod) error
}

type appState int

const (
	stateLoading appState = iota
	stateSeatMap
	stateCheckout
	stateConfirmation
	stateError
)

const (
	fieldName = iota
	fieldPhone
	fieldEmail
	fieldMethod
)

type appModel struct {
	session Session

	state appState
	snap  booking.Snapshot
	err   error

	width  int
	height int

	cursorRow       int
	cursorCol       int
	showSeatNumbers bool

	inputs     []textinput.Model
	focus      int
	methodList list.Model

	spinner  spinner.Model
	spinning bool
}

type snapshotMsg struct {
	snap booking.Snapshot
}

type sessionClosedMsg struct{}

type intentMsg struct {
	action string
	err    error
}

func New(session Session) tea.Model {
	m := appModel{
		session: session,
		state:   stateLoading,
	}

	m.inputs = []textinput.Model{
		newInput("Full name", 64),
		newInput("Phone, e.g. 0901234567", 20),
		newInput("Email (optional)", 96),
	}
	m.methodList = newList("Payment method")
	m.methodList.SetItems(buildMethodItems())
	m.methodList.SetSize(48, 16)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	m.spinner = sp
	// Init starts the first tick
	m.spinning = true

	m = m.applySnapshot(session.Current())
	m.fillCheckout(m.snap.Checkout)
	return m
}

func (m appModel) Init() tea.Cmd {
	return tea.Batch(waitForSnapshot(m.session), m.spinner.Tick)
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeLists()
		return m, nil

	case tea.KeyMsg:
		next, cmd, handled := m.handleKey(msg)
		if handled {
			return next, cmd
		}
		// fallthrough to component update

	case spinner.TickMsg:
		if !m.needsSpinner() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.spinning = true
		return m, cmd

	case snapshotMsg:
		m = m.applySnapshot(msg.snap)
		cmds := []tea.Cmd{waitForSnapshot(m.session)}
		if !m.spinning && m.needsSpinner() {
			m.spinning = true
			cmds = append(cmds, m.spinner.Tick)
		}
		return m, tea.Batch(cmds...)

	case intentMsg:
		if errors.Is(msg.err, booking.ErrClosed) {
			return m, tea.Quit
		}
		// session notices arrive with the next snapshot
		var notice *booking.Error
		if msg.err != nil && !errors.As(msg.err, &notice) {
			m.err = fmt.Errorf("%s: %w", msg.action, msg.err)
		} else {
			m.err = nil
		}
		return m, nil

	case sessionClosedMsg:
		return m, tea.Quit
	}

	var cmd tea.Cmd
	if m.state == stateCheckout {
		if m.focus == fieldMethod {
			m.methodList, cmd = m.methodList.Update(msg)
		} else {
			m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
		}
	}
	return m, cmd
}

func (m appModel) View() string {
	header := m.headerView()
	if m.snap.Notice.Blocking() && (m.state == stateSeatMap || m.state == stateCheckout) {
		return header + "\n\n" + m.blockingNoticeView()
	}
	switch m.state {
	case stateLoading:
		return header + "\n\n" + m.loadingView()
	case stateSeatMap:
		return header + "\n\n" + m.noticeView() + m.renderSeatMap() + "\n\n" + m.selectionView()
	case stateCheckout:
		return header + "\n\n" + m.noticeView() + m.checkoutView()
	case stateConfirmation:
		return header + "\n\n" + m.confirmationView()
	case stateError:
		message := "could not load the seat map"
		if m.snap.Notice != nil {
			message = m.snap.Notice.Error()
		}
		return header + "\n\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Render(message) + "\n\n" + hint("Press r to retry or q to quit.")
	default:
		return header
	}
}

func (m appModel) applySnapshot(snap booking.Snapshot) appModel {
	m.snap = snap
	switch {
	case snap.Status == booking.StatusConverted:
		m.state = stateConfirmation
	case len(snap.Seats) == 0:
		if snap.Notice != nil && !snap.Loading {
			m.state = stateError
		} else {
			m.state = stateLoading
		}
	case m.state == stateCheckout:
		if !snap.Status.Active() && snap.Status != booking.StatusConverting {
			m.state = stateSeatMap
			m.blurAll()
		}
	case m.state != stateSeatMap:
		m.state = stateSeatMap
	}
	m.clampCursor()
	return m
}

func (m appModel) needsSpinner() bool {
	return m.state == stateLoading || m.snap.Busy || m.snap.Loading || m.snap.Status == booking.StatusConverting
}

func (m appModel) headerView() string {
	title := lipgloss.NewStyle().Bold(true).Render("Cinema Booking")
	show := m.snap.Showtime
	sub := []string{}
	if show.Movie.Title != "" {
		sub = append(sub, show.Movie.Title)
	}
	if show.Room.Cinema != "" || show.Room.Name != "" {
		sub = append(sub, strings.TrimSpace(strings.Join([]string{show.Room.Cinema, show.Room.Name}, " ")))
	}
	if !show.StartTime.IsZero() {
		sub = append(sub, show.StartTime.Local().Format("Mon 02 Jan 15:04"))
	}
	if show.Format != "" {
		sub = append(sub, show.Format)
	}
	sub = append(sub, "Showtime: "+m.session.Code())
	meta := "\n" + lipgloss.NewStyle().Faint(true).Render(strings.Join(sub, " • "))

	hints := "ctrl+c quit"
	switch m.state {
	case stateSeatMap:
		hints = "q quit • arrows move • space hold/release • c checkout • e extend • x release all • r refresh • n toggle numbers"
		if m.snap.Notice != nil && !m.snap.Notice.Blocking() {
			hints += " • d dismiss"
		}
		if m.snap.Status == booking.StatusExpired || m.snap.Status == booking.StatusReleased {
			hints += " • s start over"
		}
	case stateCheckout:
		hints = "ctrl+c quit • tab next field • shift+tab previous • enter pay on payment method • esc back to seats"
	case stateConfirmation:
		hints = "q quit • s new booking"
	case stateError:
		hints = "q quit • r retry"
	}

	hold := m.holdView()
	if hold != "" {
		hold = "\n" + hold
	}
	errLine := ""
	if m.err != nil {
		errLine = "\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Render(m.err.Error())
	}
	return title + meta + hold + errLine + "\n" + hint(hints)
}

func (m appModel) holdView() string {
	snap := m.snap
	chip := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Padding(0, 1)
	switch snap.Status {
	case booking.StatusHolding:
		line := chip.Background(lipgloss.Color("63")).Render("HOLD "+formatCountdown(snap.SecondsRemaining)) + " " + strings.Join(snap.HeldLabels, ", ")
		if snap.Busy {
			line += " " + m.spinner.View() + hint("saving seats")
		}
		return line
	case booking.StatusExpiring:
		line := chip.Background(lipgloss.Color("203")).Render("EXPIRING "+formatCountdown(snap.SecondsRemaining)) + " " + strings.Join(snap.HeldLabels, ", ")
		return line + " " + hint("press e to extend")
	case booking.StatusConverting:
		return m.spinner.View() + " Processing payment for " + strings.Join(snap.HeldLabels, ", ")
	case booking.StatusExpired:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Render("Hold expired")
	case booking.StatusReleased:
		return hint("Seats released")
	}
	if snap.Busy {
		return m.spinner.View() + " " + hint("holding seats")
	}
	return ""
}

func (m appModel) loadingView() string {
	return fmt.Sprintf("%s %s\n\n%s", m.spinner.View(), "Loading seat map", hint("Fetching showtime "+m.session.Code()+"..."))
}

func (m appModel) noticeView() string {
	notice := m.snap.Notice
	if notice == nil || notice.Blocking() {
		return ""
	}
	color := lipgloss.Color("1")
	if notice.Kind == booking.KindSeatConflict || notice.Kind == booking.KindBusy {
		color = lipgloss.Color("3")
	}
	return lipgloss.NewStyle().Foreground(color).Bold(true).Render(notice.Message) + " " + hint("(d to dismiss)") + "\n\n"
}

func (m appModel) blockingNoticeView() string {
	headerChip := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("203")).
		Padding(0, 2)
	actionChip := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("63")).
		Width(8).
		Align(lipgloss.Center).
		Padding(0, 1)

	message := lipgloss.NewStyle().
		Foreground(lipgloss.Color("203")).
		Bold(true).
		Render(m.snap.Notice.Message)
	action := lipgloss.JoinHorizontal(
		lipgloss.Top,
		actionChip.Render("ENTER"),
		"  ",
		lipgloss.NewStyle().Bold(true).Render("Start over with a fresh seat map"),
	)

	content := strings.Join([]string{
		headerChip.Render("Hold Expired"),
		"",
		message,
		"",
		hint("Your seats went back to the room. Nothing was charged."),
		"",
		action,
		"",
		hint("Q quit"),
	}, "\n")
	return m.panel(content, "203")
}

func (m appModel) panel(content string, border string) string {
	panelStyle := lipgloss.NewStyle().
		Padding(1, 3).
		Border(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color(border)).
		MarginTop(1)
	if m.width > 56 {
		panelStyle = panelStyle.Width(min(m.width-8, 84))
	}
	panel := panelStyle.Render(content)
	if m.width > 0 {
		panel = lipgloss.PlaceHorizontal(m.width, lipgloss.Center, panel)
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(panel)
}

func (m appModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit, true
	}
	if m.state == stateCheckout && !m.snap.Notice.Blocking() {
		return m.handleCheckoutKey(msg)
	}
	if msg.String() == "q" {
		return m, tea.Quit, true
	}

	if m.snap.Notice.Blocking() {
		switch msg.String() {
		case "enter", "s":
			m.state = stateSeatMap
			m.blurAll()
			return m, m.intentCmd("restart", m.session.Restart), true
		}
		return m, nil, true
	}

	switch m.state {
	case stateSeatMap:
		return m.handleSeatMapKey(msg)
	case stateConfirmation:
		if msg.String() == "s" || msg.String() == "enter" {
			return m, m.intentCmd("restart", m.session.Restart), true
		}
	case stateError:
		if msg.String() == "r" {
			return m, m.intentCmd("refresh", m.session.Refresh), true
		}
	}
	return m, nil, true
}

func (m appModel) handleSeatMapKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch msg.String() {
	case "up", "k":
		m.moveCursor(-1, 0)
	case "down", "j":
		m.moveCursor(1, 0)
	case "left", "h":
		m.moveCursor(0, -1)
	case "right", "l":
		m.moveCursor(0, 1)
	case " ", "enter":
		cell, ok := m.cursorCell()
		if !ok {
			return m, nil, true
		}
		id := cell.ID
		return m, m.intentCmd("toggle seat", func(ctx context.Context) error {
			return m.session.ToggleSeat(ctx, id)
		}), true
	case "c":
		if !m.snap.Status.Active() || len(m.snap.HeldSeatIDs) == 0 {
			return m, nil, true
		}
		m.state = stateCheckout
		return m, m.setFocus(fieldName), true
	case "e":
		return m, m.intentCmd("extend hold", m.session.ExtendHold), true
	case "x":
		return m, m.intentCmd("release seats", m.session.CancelSession), true
	case "r":
		return m, m.intentCmd("refresh", m.session.Refresh), true
	case "d":
		return m, m.intentCmd("dismiss", m.session.DismissNotice), true
	case "s":
		if m.snap.Status == booking.StatusExpired || m.snap.Status == booking.StatusReleased {
			return m, m.intentCmd("restart", m.session.Restart), true
		}
	case "n":
		m.showSeatNumbers = !m.showSeatNumbers
	}
	return m, nil, true
}

func (m appModel) handleCheckoutKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch msg.String() {
	case "esc":
		m.state = stateSeatMap
		m.blurAll()
		return m, m.payerCmd(), true
	case "tab":
		return m, tea.Batch(m.leaveField(), m.setFocus((m.focus+1)%(fieldMethod+1))), true
	case "shift+tab":
		return m, tea.Batch(m.leaveField(), m.setFocus((m.focus+fieldMethod)%(fieldMethod+1))), true
	case "enter":
		if m.focus != fieldMethod {
			return m, tea.Batch(m.leaveField(), m.setFocus(m.focus+1)), true
		}
		method, ok := m.selectedMethod()
		if !ok {
			return m, nil, true
		}
		return m, m.purchaseCmd(m.payer(), method), true
	}
	return m, nil, false
}

func (m *appModel) moveCursor(dRow int, dCol int) {
	rows := seatRows(m.snap.Seats)
	if len(rows) == 0 {
		return
	}
	m.cursorRow += dRow
	m.cursorCol += dCol
	m.clampCursor()
}

func (m *appModel) clampCursor() {
	rows := seatRows(m.snap.Seats)
	if len(rows) == 0 {
		m.cursorRow, m.cursorCol = 0, 0
		return
	}
	m.cursorRow = max(0, min(m.cursorRow, len(rows)-1))
	m.cursorCol = max(0, min(m.cursorCol, len(rows[m.cursorRow])-1))
}

func (m appModel) cursorCell() (booking.SeatCell, bool) {
	rows := seatRows(m.snap.Seats)
	if m.cursorRow >= len(rows) || m.cursorCol >= len(rows[m.cursorRow]) {
		return booking.SeatCell{}, false
	}
	return rows[m.cursorRow][m.cursorCol], true
}

func (m *appModel) setFocus(field int) tea.Cmd {
	m.blurAll()
	m.focus = field
	if field < fieldMethod {
		return m.inputs[field].Focus()
	}
	return nil
}

func (m *appModel) blurAll() {
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
}

// leaveField saves the payer fields when focus moves off one of them.
func (m appModel) leaveField() tea.Cmd {
	if m.focus == fieldMethod {
		return nil
	}
	return m.payerCmd()
}

func (m *appModel) fillCheckout(checkout booking.Checkout) {
	m.inputs[fieldName].SetValue(checkout.Payer.Name)
	m.inputs[fieldPhone].SetValue(checkout.Payer.Phone)
	m.inputs[fieldEmail].SetValue(checkout.Payer.Email)
	for i, method := range model.PaymentMethods {
		if method == checkout.Method {
			m.methodList.Select(i)
		}
	}
}

func (m appModel) payer() model.PayerInfo {
	return model.PayerInfo{
		Name:  m.inputs[fieldName].Value(),
		Phone: m.inputs[fieldPhone].Value(),
		Email: m.inputs[fieldEmail].Value(),
	}
}

func (m appModel) selectedMethod() (model.PaymentMethod, bool) {
	item, ok := m.methodList.SelectedItem().(methodItem)
	if !ok {
		return "", false
	}
	return item.method, true
}

func (m appModel) intentCmd(action string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), intentTimeout)
		defer cancel()
		return intentMsg{action: action, err: fn(ctx)}
	}
}

func (m appModel) payerCmd() tea.Cmd {
	payer := m.payer()
	return m.intentCmd("save payer", func(ctx context.Context) error {
		return m.session.UpdatePayerInfo(ctx, payer.Name, payer.Phone, payer.Email)
	})
}

func (m appModel) purchaseCmd(payer model.PayerInfo, method model.PaymentMethod) tea.Cmd {
	return m.intentCmd("purchase", func(ctx context.Context) error {
		if err := m.session.UpdatePayerInfo(ctx, payer.Name, payer.Phone, payer.Email); err != nil {
			return err
		}
		if err := m.session.UpdatePaymentMethod(ctx, method); err != nil {
			return err
		}
		return m.session.SubmitPurchase(ctx)
	})
}

func waitForSnapshot(session Session) tea.Cmd {
	return func() tea.Msg {
		select {
		case snap := <-session.Updates():
			return snapshotMsg{snap: snap}
		case <-session.Done():
			return sessionClosedMsg{}
		}
	}
}

func (m *appModel) resizeLists() {
	if m.width == 0 || m.height == 0 {
		return
	}
	h := min(m.height-14, 16)
	if h < 6 {
		h = 6
	}
	m.methodList.SetSize(min(m.width, 60), h)
}

func (m appModel) checkoutView() string {
	label := lipgloss.NewStyle().Bold(true).Width(8)
	focused := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")).Width(8)
	names := []string{"Name", "Phone", "Email"}

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render("Checkout"))
	b.WriteString("  ")
	b.WriteString(hint(fmt.Sprintf("%s • %s", strings.Join(m.snap.HeldLabels, ", "), formatPrice(m.snap.Total))))
	b.WriteString("\n\n")
	for i, input := range m.inputs {
		style := label
		if m.focus == i {
			style = focused
		}
		b.WriteString(style.Render(names[i]))
		b.WriteString(input.View())
		b.WriteString("\n")
	}
	b.WriteString("\n")
	methods := m.methodList.View()
	if m.focus == fieldMethod {
		methods = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("63")).Render(methods)
	}
	b.WriteString(methods)
	if m.snap.Status == booking.StatusConverting {
		b.WriteString("\n" + m.spinner.View() + " Waiting for the payment result...")
	} else if !m.snap.CanPurchase {
		b.WriteString("\n" + hint("Fill in name, phone and a payment method, then press enter on the method to pay."))
	}
	return b.String()
}

func (m appModel) confirmationView() string {
	order := m.snap.Order
	if order == nil {
		return "Booking confirmed."
	}
	headerChip := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("2")).
		Padding(0, 2)

	labels := make([]string, 0, len(order.SeatIDs))
	for _, id := range order.SeatIDs {
		if cell, ok := m.snap.Cell(id); ok {
			labels = append(labels, cell.Label)
		} else {
			labels = append(labels, string(id))
		}
	}
	lines := []string{
		headerChip.Render("Booking Confirmed"),
		"",
		lipgloss.NewStyle().Bold(true).Render("Order " + order.Code),
		"Seats: " + strings.Join(labels, ", "),
		"Total: " + formatPrice(order.Amount),
		"Payment: " + methodName(order.PaymentMethod),
	}
	if order.Payer.Name != "" {
		lines = append(lines, "Name: "+order.Payer.Name)
	}
	if len(order.Tickets) > 0 {
		lines = append(lines, "", lipgloss.NewStyle().Bold(true).Render("Tickets"))
		for _, ticket := range order.Tickets {
			lines = append(lines, fmt.Sprintf("  %s  seat %s", ticket.Code, ticket.SeatLabel))
		}
	}
	lines = append(lines, "", hint("Show the order code at the counter. S new booking • Q quit"))
	return m.panel(strings.Join(lines, "\n"), "2")
}

func (m appModel) selectionView() string {
	cell, ok := m.cursorCell()
	cursor := ""
	if ok {
		cursor = fmt.Sprintf("Seat %s • %s • %s", cell.Label, strings.ToLower(string(cell.Type)), strings.ToLower(string(cell.Status)))
		if cell.Mine {
			cursor += " • yours"
		}
	}
	if len(m.snap.HeldSeatIDs) == 0 {
		return cursor + "\n" + hint("Pick a seat and press space to hold it.")
	}
	return cursor + "\n" + fmt.Sprintf("Your seats: %s • %s", strings.Join(m.snap.HeldLabels, ", "), formatPrice(m.snap.Total)) + "  " + hint("c checkout")
}

func (m appModel) renderSeatMap() string {
	rows := seatRows(m.snap.Seats)
	if len(rows) == 0 {
		return "No seat map data."
	}

	rowWidth := 2
	maxCol := 0
	for _, row := range rows {
		rowWidth = max(rowWidth, len(row[0].Row))
		for i, cell := range row {
			maxCol = max(maxCol, seatColumn(cell, i))
		}
	}
	cellWidth := 2
	if m.showSeatNumbers {
		cellWidth = max(cellWidth, len(strconv.Itoa(maxCol)))
	}

	seatStyleAvailable := lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	seatStyleVIP := lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	seatStyleCouple := lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	seatStyleMine := lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("63")).Bold(true)
	seatStylePending := lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	seatStyleSold := lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	seatStyleHeld := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	available, held, sold := 0, 0, 0
	var b strings.Builder
	gridWidth := maxCol*(cellWidth+1) - 1
	screenBar := screenBarBlock(gridWidth, "SCREEN")
	screenStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("214"))
	screenBorderStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Background(lipgloss.Color("236"))
	pad := strings.Repeat(" ", rowWidth+1)
	b.WriteString(pad + screenBorderStyle.Render(screenBar.top) + "\n")
	b.WriteString(pad + screenStyle.Render(screenBar.mid) + "\n")
	b.WriteString(pad + screenBorderStyle.Render(screenBar.bot) + "\n\n")

	for r, row := range rows {
		positions := make(map[int]int, len(row))
		for i, cell := range row {
			positions[seatColumn(cell, i)] = i
		}
		b.WriteString(fmt.Sprintf("%*s ", rowWidth, row[0].Row))
		for col := 1; col <= maxCol; col++ {
			i, ok := positions[col]
			if !ok {
				b.WriteString(strings.Repeat(" ", cellWidth))
			} else {
				cell := row[i]
				token, status := seatToken(cell)
				switch status {
				case "available":
					available++
				case "held":
					held++
				case "sold":
					sold++
				}
				text := token
				if m.showSeatNumbers {
					text = strconv.Itoa(seatColumn(cell, i))
				}
				rendered := padCell(text, cellWidth)
				switch {
				case status == "mine":
					rendered = seatStyleMine.Render(rendered)
				case status == "pending":
					rendered = seatStylePending.Render(rendered)
				case status == "sold":
					rendered = seatStyleSold.Render(rendered)
				case status == "held":
					rendered = seatStyleHeld.Render(rendered)
				case cell.Type == model.SeatVIP:
					rendered = seatStyleVIP.Render(rendered)
				case cell.Type == model.SeatCouple:
					rendered = seatStyleCouple.Render(rendered)
				default:
					rendered = seatStyleAvailable.Render(rendered)
				}
				if r == m.cursorRow && i == m.cursorCol {
					rendered = lipgloss.NewStyle().Reverse(true).Render(padCell(text, cellWidth))
				}
				b.WriteString(rendered)
			}
			if col < maxCol {
				b.WriteString(" ")
			}
		}
		b.WriteString(fmt.Sprintf(" %*s\n", rowWidth, row[0].Row))
	}

	legend := "Legend: [] standard • {} vip • () couple • <> yours • .. saving • ## held • XX sold"
	if m.showSeatNumbers {
		legend = "Legend: color shows status • numbers are seat columns • couple seats move in pairs"
	}
	counts := fmt.Sprintf("Available: %d • Held: %d • Sold: %d • Yours: %d • Total: %d", available, held, sold, len(m.snap.HeldSeatIDs), len(m.snap.Seats))
	if m.snap.Showtime.Price > 0 {
		counts += " • " + formatPrice(m.snap.Showtime.Price) + " per seat"
	}
	return "\n" + b.String() + "\n" + hint(legend) + "\n" + hint(counts)
}

// seatRows groups cells by row, keeping the layout order of the snapshot.
func seatRows(cells []booking.SeatCell) [][]booking.SeatCell {
	var rows [][]booking.SeatCell
	index := map[string]int{}
	for _, cell := range cells {
		i, ok := index[cell.Row]
		if !ok {
			i = len(rows)
			index[cell.Row] = i
			rows = append(rows, nil)
		}
		rows[i] = append(rows[i], cell)
	}
	return rows
}

func seatColumn(cell booking.SeatCell, position int) int {
	if cell.Column > 0 {
		return cell.Column
	}
	return position + 1
}

func seatToken(cell booking.SeatCell) (string, string) {
	switch {
	case cell.Pending:
		return "..", "pending"
	case cell.Mine:
		return "<>", "mine"
	case cell.Status == model.SeatBooked || cell.Status == model.SeatSold:
		return "XX", "sold"
	case cell.Disabled:
		return "##", "held"
	case cell.Type == model.SeatVIP:
		return "{}", "available"
	case cell.Type == model.SeatCouple:
		return "()", "available"
	default:
		return "[]", "available"
	}
}

type methodItem struct {
	method model.PaymentMethod
}

func (i methodItem) Title() string {
	return methodName(i.method)
}

func (i methodItem) Description() string {
	switch i.method {
	case model.PaymentCash:
		return "Pay at the counter before the show"
	case model.PaymentCard:
		return "Debit or credit card"
	default:
		return "E-wallet"
	}
}

func (i methodItem) FilterValue() string {
	return strings.ToLower(string(i.method))
}

func buildMethodItems() []list.Item {
	items := make([]list.Item, 0, len(model.PaymentMethods))
	for _, method := range model.PaymentMethods {
		items = append(items, methodItem{method: method})
	}
	return items
}

func methodName(method model.PaymentMethod) string {
	switch method {
	case model.PaymentCash:
		return "Cash"
	case model.PaymentCard:
		return "Card"
	case model.PaymentMomo:
		return "MoMo"
	case model.PaymentVNPay:
		return "VNPay"
	case model.PaymentZaloPay:
		return "ZaloPay"
	default:
		return string(method)
	}
}

func newList(title string) list.Model {
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = title
	l.SetFilteringEnabled(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	return l
}

func newInput(placeholder string, limit int) textinput.Model {
	input := textinput.New()
	input.Placeholder = placeholder
	input.CharLimit = limit
	input.Prompt = "› "
	return input
}

func hint(text string) string {
	return lipgloss.NewStyle().Faint(true).Render(text)
}

func padCell(text string, width int) string {
	if width <= 0 {
		return ""
	}
	if text == "" {
		return strings.Repeat(" ", width)
	}
	if len(text) >= width {
		return text[:width]
	}
	padding := width - len(text)
	left := padding / 2
	right := padding - left
	return strings.Repeat(" ", left) + text + strings.Repeat(" ", right)
}

type screenBlock struct {
	top string
	mid string
	bot string
}

func screenBarBlock(width int, label string) screenBlock {
	if width < len(label)+4 {
		width = len(label) + 4
	}
	if width < 10 {
		width = 10
	}

	border := "╭" + strings.Repeat("─", width-2) + "╮"
	bottom := "╰" + strings.Repeat("─", width-2) + "╯"

	labelText := " " + label + " "
	padding := width - len(labelText) - 2
	left := padding / 2
	right := padding - left
	mid := "│" + strings.Repeat(" ", left) + labelText + strings.Repeat(" ", right) + "│"
	return screenBlock{top: border, mid: mid, bot: bottom}
}

func formatCountdown(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// formatPrice renders an amount in VND with dot separated thousands.
func formatPrice(price float64) string {
	if price <= 0 {
		return "-"
	}
	digits := strconv.FormatInt(int64(price+0.5), 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return b.String() + " VND"
}

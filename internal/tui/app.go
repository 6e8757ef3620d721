package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask-aran/uniapp/internal/config"
	"github.com/jask-aran/uniapp/internal/core"
	"github.com/jask-aran/uniapp/internal/domain"
	"github.com/jask-aran/uniapp/internal/prefs"
	"github.com/jask-aran/uniapp/internal/service"
)

// App is the event-driven front end. It never touches entity state
// directly: writes go through the services and every view refresh is
// triggered by a change event arriving on the subscription.
type App struct {
	ctx      context.Context
	cfg      config.Config
	services Services
	events   *core.Subscription
	prefs    prefs.Prefs

	state appState
	modal modalState

	loginInputs    []textinput.Model // email, password
	registerInputs []textinput.Model // name, email, password
	passwordInputs []textinput.Model // new, confirm
	searchInput    textinput.Model
	focus          int

	student       *domain.Student
	subjectCursor int

	adminMode    adminMode
	students     []*domain.Student
	groups       map[string][]*domain.Student
	passing      []*domain.Student
	failing      []*domain.Student
	adminCursor  int
	matches      []service.Match
	removeTarget string

	status    string
	statusErr bool
	lastEvent string
}

// Services bundles what the screens call into.
type Services struct {
	Enrollment *service.Enrollment
	Admin      *service.Admin
	Search     *service.Search
}

type appState string

const (
	viewLogin    appState = "login"
	viewRegister appState = "register"
	viewStudent  appState = "student"
	viewAdmin    appState = "admin"
)

type adminMode string

const (
	adminModeList      adminMode = "list"
	adminModeGroups    adminMode = "groups"
	adminModePartition adminMode = "partition"
	adminModeSearch    adminMode = "search"
)

type modalState string

const (
	modalNone          modalState = ""
	modalConfirmClear  modalState = "confirmClear"
	modalConfirmRemove modalState = "confirmRemove"
	modalPassword      modalState = "password"
)

func New(ctx context.Context, cfg config.Config, services Services, events *core.Subscription, pr prefs.Prefs) *App {
	setAccent(cfg.UI.Accent)

	email := textinput.New()
	email.Prompt = "Email: "
	email.Placeholder = "name@university.com"
	email.SetValue(pr.LastEmail)
	email.Focus()
	password := textinput.New()
	password.Prompt = "Password: "
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '*'

	regName := textinput.New()
	regName.Prompt = "Name: "
	regEmail := textinput.New()
	regEmail.Prompt = "Email: "
	regEmail.Placeholder = "name@university.com"
	regPassword := textinput.New()
	regPassword.Prompt = "Password: "
	regPassword.EchoMode = textinput.EchoPassword
	regPassword.EchoCharacter = '*'

	newPass := textinput.New()
	newPass.Prompt = "New password: "
	newPass.EchoMode = textinput.EchoPassword
	newPass.EchoCharacter = '*'
	confirmPass := textinput.New()
	confirmPass.Prompt = "Confirm password: "
	confirmPass.EchoMode = textinput.EchoPassword
	confirmPass.EchoCharacter = '*'

	search := textinput.New()
	search.Prompt = "Name: "

	return &App{
		ctx:            ctx,
		cfg:            cfg,
		services:       services,
		events:         events,
		prefs:          pr,
		state:          viewLogin,
		adminMode:      adminModeList,
		loginInputs:    []textinput.Model{email, password},
		registerInputs: []textinput.Model{regName, regEmail, regPassword},
		passwordInputs: []textinput.Model{newPass, confirmPass},
		searchInput:    search,
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, a.waitForChange())
}

// waitForChange blocks on the subscription and re-arms after every event.
func (a *App) waitForChange() tea.Cmd {
	if a.events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-a.events.Events()
		if !ok {
			return nil
		}
		return changeMsg(ev)
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.KeyMsg:
		if a.modal != modalNone {
			return a.handleModalKey(m)
		}
		switch a.state {
		case viewRegister:
			return a.handleRegisterKey(m)
		case viewStudent:
			return a.handleStudentKey(m)
		case viewAdmin:
			return a.handleAdminKey(m)
		default:
			return a.handleLoginKey(m)
		}
	case changeMsg:
		a.lastEvent = eventLabel(core.ChangeEvent(m))
		a.refresh()
		return a, a.waitForChange()
	case loginMsg:
		a.student = m.student
		a.subjectCursor = 0
		a.state = viewStudent
		a.setOK("Login successful!")
	case registeredMsg:
		a.state = viewLogin
		a.focus = 0
		a.setLoginFocus()
		a.loginInputs[0].SetValue(m.email)
		a.loginInputs[1].Reset()
		a.setOK("Registration successful! Please login.")
	case statusMsg:
		a.setOK(string(m))
	case errMsg:
		a.setErr(m.Error())
	default:
		return a, a.updateFocusedInput(msg)
	}
	return a, nil
}

// updateFocusedInput forwards cursor blink and similar messages to
// whichever text input currently has focus.
func (a *App) updateFocusedInput(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch {
	case a.modal == modalPassword:
		a.passwordInputs[a.focus], cmd = a.passwordInputs[a.focus].Update(msg)
	case a.state == viewLogin:
		a.loginInputs[a.focus], cmd = a.loginInputs[a.focus].Update(msg)
	case a.state == viewRegister:
		a.registerInputs[a.focus], cmd = a.registerInputs[a.focus].Update(msg)
	case a.state == viewAdmin && a.adminMode == adminModeSearch:
		a.searchInput, cmd = a.searchInput.Update(msg)
	}
	return cmd
}

// refresh re-derives whatever the current screen shows. Called on every
// change event so concurrent mutations appear without user action.
func (a *App) refresh() {
	switch a.state {
	case viewStudent:
		if a.student == nil {
			return
		}
		st, err := a.services.Enrollment.Refresh(a.student.ID)
		if err != nil {
			if core.IsNotFound(err) {
				a.student = nil
				a.modal = modalNone
				a.state = viewLogin
				a.setLoginFocus()
				a.setErr("Your student record was removed")
			}
			return
		}
		a.student = st
		if a.subjectCursor >= len(st.Subjects) {
			a.subjectCursor = 0
		}
	case viewAdmin:
		a.reloadAdmin()
	}
}

func (a *App) reloadAdmin() {
	a.students = a.services.Admin.Students()
	if a.adminCursor >= len(a.students) {
		a.adminCursor = 0
	}
	switch a.adminMode {
	case adminModeGroups:
		a.groups = a.services.Admin.GroupByGrade()
	case adminModePartition:
		a.passing, a.failing = a.services.Admin.PartitionPassFail()
	case adminModeSearch:
		a.matches = a.services.Search.ByName(a.searchInput.Value())
	}
}

// key handlers

func (a *App) handleLoginKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "ctrl+c", "esc":
		return a, tea.Quit
	case "ctrl+r":
		a.state = viewRegister
		a.focus = 0
		a.setRegisterFocus()
		a.clearStatus()
		return a, nil
	case "ctrl+a":
		a.state = viewAdmin
		a.adminMode = adminModeList
		a.reloadAdmin()
		a.clearStatus()
		return a, nil
	case "tab", "down":
		a.cycleFocus(a.loginInputs, 1)
		return a, nil
	case "shift+tab", "up":
		a.cycleFocus(a.loginInputs, -1)
		return a, nil
	case "enter":
		email := strings.TrimSpace(a.loginInputs[0].Value())
		password := a.loginInputs[1].Value()
		if email == "" || password == "" {
			a.setErr("All fields are required!")
			return a, nil
		}
		return a, a.loginCmd(email, password)
	}
	var cmd tea.Cmd
	a.loginInputs[a.focus], cmd = a.loginInputs[a.focus].Update(m)
	return a, cmd
}

func (a *App) handleRegisterKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "esc", "ctrl+r":
		a.state = viewLogin
		a.focus = 0
		a.setLoginFocus()
		a.clearStatus()
		return a, nil
	case "tab", "down":
		a.cycleFocus(a.registerInputs, 1)
		return a, nil
	case "shift+tab", "up":
		a.cycleFocus(a.registerInputs, -1)
		return a, nil
	case "enter":
		name := strings.TrimSpace(a.registerInputs[0].Value())
		email := strings.TrimSpace(a.registerInputs[1].Value())
		password := a.registerInputs[2].Value()
		if name == "" || email == "" || password == "" {
			a.setErr("All fields are required!")
			return a, nil
		}
		return a, a.registerCmd(name, email, password)
	}
	var cmd tea.Cmd
	a.registerInputs[a.focus], cmd = a.registerInputs[a.focus].Update(m)
	return a, cmd
}

func (a *App) handleStudentKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.student == nil {
		a.state = viewLogin
		return a, nil
	}
	switch m.String() {
	case "q", "ctrl+c":
		return a, tea.Quit
	case "up", "k":
		if a.subjectCursor > 0 {
			a.subjectCursor--
		}
	case "down", "j":
		if a.subjectCursor < len(a.student.Subjects)-1 {
			a.subjectCursor++
		}
	case "e":
		return a, a.enrolCmd(a.student.ID)
	case "w":
		if len(a.student.Subjects) == 0 {
			a.setErr("No subjects to withdraw from")
			return a, nil
		}
		sub := a.student.Subjects[a.subjectCursor]
		return a, a.withdrawCmd(a.student.ID, sub.ID)
	case "c":
		a.modal = modalPassword
		a.focus = 0
		a.passwordInputs[0].Reset()
		a.passwordInputs[1].Reset()
		a.passwordInputs[0].Focus()
		a.passwordInputs[1].Blur()
		return a, nil
	case "r":
		a.refresh()
		a.setOK("Refreshed")
	case "x":
		a.student = nil
		a.state = viewLogin
		a.focus = 0
		a.setLoginFocus()
		a.clearStatus()
	}
	return a, nil
}

func (a *App) handleAdminKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.adminMode == adminModeSearch {
		return a.handleSearchKey(m)
	}
	switch m.String() {
	case "q", "ctrl+c":
		return a, tea.Quit
	case "esc":
		if a.adminMode != adminModeList {
			a.adminMode = adminModeList
			a.reloadAdmin()
			return a, nil
		}
		a.state = viewLogin
		a.setLoginFocus()
		a.clearStatus()
	case "x":
		a.state = viewLogin
		a.setLoginFocus()
		a.clearStatus()
	case "up", "k":
		if a.adminMode == adminModeList && a.adminCursor > 0 {
			a.adminCursor--
		}
	case "down", "j":
		if a.adminMode == adminModeList && a.adminCursor < len(a.students)-1 {
			a.adminCursor++
		}
	case "g":
		a.adminMode = adminModeGroups
		a.reloadAdmin()
	case "p":
		a.adminMode = adminModePartition
		a.reloadAdmin()
	case "f":
		a.adminMode = adminModeSearch
		a.searchInput.Reset()
		a.searchInput.Focus()
		a.matches = nil
	case "r":
		if a.adminMode == adminModeList && len(a.students) > 0 {
			a.removeTarget = a.students[a.adminCursor].ID
			a.modal = modalConfirmRemove
		}
	case "c":
		if a.adminMode == adminModeList {
			a.modal = modalConfirmClear
		}
	case "s":
		if a.adminMode == adminModeList {
			return a, a.saveCmd()
		}
	}
	return a, nil
}

func (a *App) handleSearchKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "esc":
		a.adminMode = adminModeList
		a.searchInput.Blur()
		a.reloadAdmin()
		return a, nil
	}
	var cmd tea.Cmd
	a.searchInput, cmd = a.searchInput.Update(m)
	a.matches = a.services.Search.ByName(a.searchInput.Value())
	return a, cmd
}

func (a *App) handleModalKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch a.modal {
	case modalConfirmRemove:
		switch m.String() {
		case "y":
			id := a.removeTarget
			a.modal = modalNone
			a.removeTarget = ""
			return a, a.removeCmd(id)
		case "n", "esc":
			a.modal = modalNone
			a.removeTarget = ""
		}
	case modalConfirmClear:
		switch m.String() {
		case "y":
			a.modal = modalNone
			return a, a.clearCmd()
		case "n", "esc":
			a.modal = modalNone
			a.setOK("Operation cancelled")
		}
	case modalPassword:
		switch m.String() {
		case "esc":
			a.modal = modalNone
			return a, nil
		case "tab", "shift+tab", "up", "down":
			dir := 1
			if m.String() == "shift+tab" || m.String() == "up" {
				dir = -1
			}
			a.cycleFocus(a.passwordInputs, dir)
			return a, nil
		case "enter":
			a.modal = modalNone
			newPassword := a.passwordInputs[0].Value()
			confirm := a.passwordInputs[1].Value()
			return a, a.changePasswordCmd(a.student.ID, newPassword, confirm)
		}
		var cmd tea.Cmd
		a.passwordInputs[a.focus], cmd = a.passwordInputs[a.focus].Update(m)
		return a, cmd
	}
	return a, nil
}

// commands

func (a *App) loginCmd(email, password string) tea.Cmd {
	return func() tea.Msg {
		st, err := a.services.Enrollment.Login(email, password)
		if err != nil {
			return errMsg{err}
		}
		p := a.prefs
		p.LastEmail = st.Email
		_ = prefs.Save(p)
		return loginMsg{student: st}
	}
}

func (a *App) registerCmd(name, email, password string) tea.Cmd {
	return func() tea.Msg {
		_, err := a.services.Enrollment.Register(name, email, password)
		if err != nil {
			if core.IsConflict(err) {
				return errMsg{errors.New("Student already exists!")}
			}
			return errMsg{err}
		}
		return registeredMsg{email: email}
	}
}

func (a *App) enrolCmd(studentID string) tea.Cmd {
	return func() tea.Msg {
		st, err := a.services.Enrollment.Enrol(studentID)
		if err != nil {
			return errMsg{err}
		}
		latest := st.Subjects[len(st.Subjects)-1]
		return statusMsg(fmt.Sprintf("Enrolled in Subject-%s!", latest.ID))
	}
}

func (a *App) withdrawCmd(studentID, subjectID string) tea.Cmd {
	return func() tea.Msg {
		if _, err := a.services.Enrollment.Withdraw(studentID, subjectID); err != nil {
			return errMsg{err}
		}
		return statusMsg(fmt.Sprintf("Dropped Subject-%s!", subjectID))
	}
}

func (a *App) changePasswordCmd(studentID, newPassword, confirm string) tea.Cmd {
	return func() tea.Msg {
		if _, err := a.services.Enrollment.ChangePassword(studentID, newPassword, confirm); err != nil {
			return errMsg{err}
		}
		return statusMsg("Password changed successfully!")
	}
}

func (a *App) removeCmd(id string) tea.Cmd {
	return func() tea.Msg {
		if err := a.services.Admin.Remove(id); err != nil {
			if core.IsNotFound(err) {
				return errMsg{fmt.Errorf("Student %s not found!", id)}
			}
			return errMsg{err}
		}
		return statusMsg(fmt.Sprintf("Student %s removed successfully!", id))
	}
}

func (a *App) clearCmd() tea.Cmd {
	return func() tea.Msg {
		if _, err := a.services.Admin.Clear(); err != nil {
			return errMsg{err}
		}
		return statusMsg("Database cleared successfully!")
	}
}

func (a *App) saveCmd() tea.Cmd {
	return func() tea.Msg {
		n, err := a.services.Admin.Save()
		if err != nil {
			return errMsg{err}
		}
		return statusMsg(fmt.Sprintf("Saved %d students", n))
	}
}

// focus helpers

func (a *App) cycleFocus(inputs []textinput.Model, dir int) {
	inputs[a.focus].Blur()
	a.focus = (a.focus + dir + len(inputs)) % len(inputs)
	inputs[a.focus].Focus()
}

func (a *App) setLoginFocus() {
	for i := range a.loginInputs {
		a.loginInputs[i].Blur()
	}
	a.focus = 0
	a.loginInputs[0].Focus()
}

func (a *App) setRegisterFocus() {
	for i := range a.registerInputs {
		a.registerInputs[i].Blur()
	}
	a.focus = 0
	a.registerInputs[0].Focus()
}

func (a *App) setOK(s string) {
	a.status = s
	a.statusErr = false
}

func (a *App) setErr(s string) {
	a.status = s
	a.statusErr = true
}

func (a *App) clearStatus() {
	a.status = ""
	a.statusErr = false
}

// rendering

func (a *App) View() string {
	var body string
	switch a.state {
	case viewRegister:
		body = a.renderRegister()
	case viewStudent:
		body = a.renderStudent()
	case viewAdmin:
		body = a.renderAdmin()
	default:
		body = a.renderLogin()
	}
	if a.modal != modalNone {
		body += "\n\n" + a.renderModal()
	}
	return body + a.renderTail()
}

func (a *App) renderTail() string {
	out := ""
	if a.status != "" {
		if a.statusErr {
			out += "\n" + errorStyle.Render(a.status)
		} else {
			out += "\n" + successStyle.Render(a.status)
		}
	}
	if a.lastEvent != "" {
		out += "\n" + eventStyle.Render("last change: "+a.lastEvent)
	}
	return out
}

func (a *App) renderLogin() string {
	out := titleStyle.Render("University System - Login") + "\n\n"
	for _, in := range a.loginInputs {
		out += in.View() + "\n"
	}
	out += "\n" + mutedStyle.Render("[enter] Login  [ctrl+r] Register  [ctrl+a] Admin  [esc] Quit")
	return out
}

func (a *App) renderRegister() string {
	out := titleStyle.Render("University System - Register") + "\n\n"
	for _, in := range a.registerInputs {
		out += in.View() + "\n"
	}
	out += "\n" + mutedStyle.Render("[enter] Register  [ctrl+r] Back to login  [ctrl+c] Quit")
	return out
}

func (a *App) renderStudent() string {
	st := a.student
	if st == nil {
		return titleStyle.Render("Student")
	}
	out := titleStyle.Render("Student - "+st.Name) + "\n"
	out += headerStyle.Render(fmt.Sprintf("ID %s  %s", st.ID, st.Email)) + "\n"
	verdict := "FAIL"
	if st.IsPassing() {
		verdict = "PASS"
	}
	out += fmt.Sprintf("Enrolled in %d out of %d subjects  Average: %.2f (%s)\n\n",
		len(st.Subjects), domain.MaxSubjects, st.AverageMark(), verdict)
	if len(st.Subjects) == 0 {
		out += mutedStyle.Render("(no subjects yet, press e to enrol)") + "\n"
	}
	for i, sub := range st.Subjects {
		marker := " "
		if i == a.subjectCursor {
			marker = "▶"
		}
		out += fmt.Sprintf("%s Subject::%s  mark = %d  grade = %s\n", marker, sub.ID, sub.Mark, sub.Grade)
	}
	out += "\n" + mutedStyle.Render("[e] Enrol  [w] Withdraw  [c] Change password  [r] Refresh  [x] Logout  [q] Quit")
	return out
}

func (a *App) renderAdmin() string {
	switch a.adminMode {
	case adminModeGroups:
		return a.renderGroups()
	case adminModePartition:
		return a.renderPartition()
	case adminModeSearch:
		return a.renderSearch()
	}
	out := titleStyle.Render("Admin - Students") + "\n"
	if len(a.students) == 0 {
		out += mutedStyle.Render("No students found") + "\n"
	}
	for i, st := range a.students {
		marker := " "
		if i == a.adminCursor {
			marker = "▶"
		}
		out += fmt.Sprintf("%s %s\n", marker, studentLine(st))
	}
	out += "\n" + mutedStyle.Render("[g] Group by grade  [p] Partition  [f] Find  [r] Remove  [c] Clear  [s] Save  [x] Back  [q] Quit")
	return out
}

func (a *App) renderGroups() string {
	out := titleStyle.Render("Admin - Grade Grouping") + "\n"
	empty := true
	for _, grade := range service.GradeOrder {
		students := a.groups[grade]
		if len(students) == 0 {
			continue
		}
		empty = false
		out += headerStyle.Render(grade) + "\n"
		for _, st := range students {
			out += "  " + studentLine(st) + "\n"
		}
	}
	if empty {
		out += mutedStyle.Render("No students found") + "\n"
	}
	out += "\n" + mutedStyle.Render("[esc] Back  [q] Quit")
	return out
}

func (a *App) renderPartition() string {
	out := titleStyle.Render("Admin - Pass/Fail") + "\n"
	out += headerStyle.Render("PASS") + "\n"
	for _, st := range a.passing {
		out += "  " + studentLine(st) + "\n"
	}
	out += headerStyle.Render("FAIL") + "\n"
	for _, st := range a.failing {
		out += "  " + studentLine(st) + "\n"
	}
	out += "\n" + mutedStyle.Render("[esc] Back  [q] Quit")
	return out
}

func (a *App) renderSearch() string {
	out := titleStyle.Render("Admin - Find Student") + "\n"
	out += a.searchInput.View() + "\n\n"
	for _, m := range a.matches {
		out += fmt.Sprintf("%.2f  %s\n", m.Similarity, studentLine(m.Student))
	}
	if len(a.matches) == 0 && strings.TrimSpace(a.searchInput.Value()) != "" {
		out += mutedStyle.Render("No matches") + "\n"
	}
	out += "\n" + mutedStyle.Render("[esc] Back  [ctrl+c] Quit")
	return out
}

func (a *App) renderModal() string {
	switch a.modal {
	case modalConfirmRemove:
		return titleStyle.Render("Remove student "+a.removeTarget+"?") + "\n[y] Yes  [n] No"
	case modalConfirmClear:
		return titleStyle.Render("Are you sure you want to clear all data?") + "\n[y] Yes  [n] No"
	case modalPassword:
		out := titleStyle.Render("Change password") + "\n"
		for _, in := range a.passwordInputs {
			out += in.View() + "\n"
		}
		out += "[enter] Save  [esc] Cancel"
		return out
	default:
		return ""
	}
}

func studentLine(st *domain.Student) string {
	return fmt.Sprintf("%s :: %s --> Email: %s, Subjects: %d, Avg: %.2f",
		st.Name, st.ID, st.Email, len(st.Subjects), st.AverageMark())
}

func eventLabel(ev core.ChangeEvent) string {
	if ev.ID == "" {
		return string(ev.Kind)
	}
	return fmt.Sprintf("%s %s", ev.Kind, ev.ID)
}

// messages
type changeMsg core.ChangeEvent

type statusMsg string

type errMsg struct{ error }

type loginMsg struct{ student *domain.Student }

type registeredMsg struct{ email string }

package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jask-aran/uniapp/internal/core"
	"github.com/jask-aran/uniapp/internal/domain"
	"github.com/jask-aran/uniapp/internal/service"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#89b4fa"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#a6e3a1"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#f38ba8"))
	eventStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#585b70"))
)

// App is the blocking-read menu front end. It owns no entity state;
// every read and write goes through the services and each applied
// change also arrives back on the Events subscription.
type App struct {
	Enrollment *service.Enrollment
	Admin      *service.Admin
	Events     *core.Subscription

	in  *bufio.Scanner
	out io.Writer
}

// New wires the menu loop to its input and output streams.
func New(enr *service.Enrollment, admin *service.Admin, events *core.Subscription, in io.Reader, out io.Writer) *App {
	return &App{
		Enrollment: enr,
		Admin:      admin,
		Events:     events,
		in:         bufio.NewScanner(in),
		out:        out,
	}
}

// Run loops on the university menu until exit or EOF.
func (a *App) Run() error {
	for {
		choice, ok := a.prompt("University System: (A)dmin, (S)tudent, or e(X)it")
		if !ok {
			return nil
		}
		switch strings.ToUpper(choice) {
		case "A":
			a.adminMenu()
		case "S":
			a.studentMenu()
		case "X":
			return nil
		case "":
		default:
			a.errorf("Invalid option")
		}
	}
}

func (a *App) studentMenu() {
	for {
		choice, ok := a.prompt("Student System: (l)ogin, (r)egister, or e(x)it")
		if !ok {
			return
		}
		switch strings.ToLower(choice) {
		case "l":
			a.login()
		case "r":
			a.register()
		case "x":
			return
		case "":
		default:
			a.errorf("Invalid option")
		}
	}
}

func (a *App) register() {
	name, ok := a.prompt("Name")
	if !ok {
		return
	}
	email, ok := a.prompt("Email")
	if !ok {
		return
	}
	password, ok := a.prompt("Password")
	if !ok {
		return
	}
	_, err := a.Enrollment.Register(name, email, password)
	switch {
	case err == nil:
		a.successf("Registration successful! Please login.")
	case core.IsConflict(err):
		a.errorf("Student already exists!")
	default:
		a.errorf("%v", err)
	}
}

func (a *App) login() {
	email, ok := a.prompt("Email")
	if !ok {
		return
	}
	password, ok := a.prompt("Password")
	if !ok {
		return
	}
	st, err := a.Enrollment.Login(email, password)
	if err != nil {
		a.errorf("%v", err)
		return
	}
	a.successf("Login successful!")
	a.courseMenu(st.ID)
}

func (a *App) courseMenu(studentID string) {
	for {
		choice, ok := a.prompt("Student Course Menu: (c)hange password, (e)nrol, (r)emove subject, (s)how, or e(x)it")
		if !ok {
			return
		}
		switch strings.ToLower(choice) {
		case "c":
			a.changePassword(studentID)
		case "e":
			a.enrol(studentID)
		case "r":
			a.withdraw(studentID)
		case "s":
			a.showSubjects(studentID)
		case "x":
			return
		case "":
		default:
			a.errorf("Invalid option")
		}
	}
}

func (a *App) enrol(studentID string) {
	st, err := a.Enrollment.Enrol(studentID)
	if err != nil {
		a.errorf("%v", err)
		return
	}
	latest := st.Subjects[len(st.Subjects)-1]
	a.successf("Enrolled in Subject-%s!", latest.ID)
	fmt.Fprintf(a.out, "You are now enrolled in %d out of %d subjects\n", len(st.Subjects), domain.MaxSubjects)
}

func (a *App) withdraw(studentID string) {
	subjectID, ok := a.prompt("Subject ID")
	if !ok {
		return
	}
	st, err := a.Enrollment.Withdraw(studentID, subjectID)
	if err != nil {
		a.errorf("%v", err)
		return
	}
	a.successf("Dropped Subject-%s!", subjectID)
	fmt.Fprintf(a.out, "You are now enrolled in %d out of %d subjects\n", len(st.Subjects), domain.MaxSubjects)
}

func (a *App) showSubjects(studentID string) {
	st, err := a.Enrollment.Refresh(studentID)
	if err != nil {
		a.errorf("%v", err)
		return
	}
	fmt.Fprintf(a.out, "Showing %d subjects\n", len(st.Subjects))
	for _, sub := range st.Subjects {
		fmt.Fprintf(a.out, "[ Subject::%s -- mark = %d -- grade = %s ]\n", sub.ID, sub.Mark, sub.Grade)
	}
	if len(st.Subjects) > 0 {
		fmt.Fprintf(a.out, "Average mark: %.2f\n", st.AverageMark())
	}
}

func (a *App) changePassword(studentID string) {
	newPassword, ok := a.prompt("New password")
	if !ok {
		return
	}
	confirm, ok := a.prompt("Confirm password")
	if !ok {
		return
	}
	if _, err := a.Enrollment.ChangePassword(studentID, newPassword, confirm); err != nil {
		a.errorf("%v", err)
		return
	}
	a.successf("Password changed successfully!")
}

func (a *App) adminMenu() {
	for {
		choice, ok := a.prompt("Admin System: (c)lear database, (g)roup students, (p)artition students, (r)emove student, (s)how students, or e(x)it")
		if !ok {
			return
		}
		switch strings.ToLower(choice) {
		case "c":
			a.clear()
		case "g":
			a.groupByGrade()
		case "p":
			a.partition()
		case "r":
			a.removeStudent()
		case "s":
			a.showStudents()
		case "x":
			return
		case "":
		default:
			a.errorf("Invalid option")
		}
	}
}

func (a *App) showStudents() {
	students := a.Admin.Students()
	if len(students) == 0 {
		a.errorf("No students found")
		return
	}
	fmt.Fprintln(a.out, titleStyle.Render("Student List"))
	for _, st := range students {
		fmt.Fprintln(a.out, studentLine(st))
	}
}

func (a *App) groupByGrade() {
	groups := a.Admin.GroupByGrade()
	if len(groups) == 0 {
		a.errorf("No students found")
		return
	}
	fmt.Fprintln(a.out, titleStyle.Render("Grade Grouping"))
	for _, grade := range service.GradeOrder {
		students := groups[grade]
		if len(students) == 0 {
			continue
		}
		fmt.Fprintf(a.out, "%-2s --> %s\n", grade, studentList(students))
	}
}

func (a *App) partition() {
	passing, failing := a.Admin.PartitionPassFail()
	if len(passing) == 0 && len(failing) == 0 {
		a.errorf("No students found")
		return
	}
	fmt.Fprintln(a.out, titleStyle.Render("Pass/Fail Partition"))
	fmt.Fprintf(a.out, "PASS --> %s\n", studentList(passing))
	fmt.Fprintf(a.out, "FAIL --> %s\n", studentList(failing))
}

func (a *App) removeStudent() {
	id, ok := a.prompt("Student ID")
	if !ok {
		return
	}
	err := a.Admin.Remove(id)
	switch {
	case err == nil:
		a.successf("Student %s removed successfully!", id)
	case core.IsNotFound(err):
		a.errorf("Student %s not found!", id)
	default:
		a.errorf("%v", err)
	}
}

func (a *App) clear() {
	confirmed, ok := a.prompt("Are you sure you want to clear all data? (y/N)")
	if !ok {
		return
	}
	if strings.ToLower(confirmed) != "y" {
		a.successf("Operation cancelled")
		return
	}
	if _, err := a.Admin.Clear(); err != nil {
		a.errorf("%v", err)
		return
	}
	a.successf("Database cleared successfully!")
}

// prompt drains any pending change events, prints the label and reads one
// trimmed line. ok is false once input is exhausted.
func (a *App) prompt(label string) (string, bool) {
	a.drainEvents()
	fmt.Fprintf(a.out, "%s : ", label)
	if !a.in.Scan() {
		fmt.Fprintln(a.out)
		return "", false
	}
	return strings.TrimSpace(a.in.Text()), true
}

// drainEvents surfaces whatever the notifier has queued without blocking.
func (a *App) drainEvents() {
	if a.Events == nil {
		return
	}
	for {
		select {
		case ev, ok := <-a.Events.Events():
			if !ok {
				return
			}
			fmt.Fprintln(a.out, eventStyle.Render("· "+eventLine(ev)))
		default:
			return
		}
	}
}

func (a *App) successf(format string, args ...any) {
	fmt.Fprintln(a.out, successStyle.Render(fmt.Sprintf(format, args...)))
}

func (a *App) errorf(format string, args ...any) {
	fmt.Fprintln(a.out, errorStyle.Render(fmt.Sprintf(format, args...)))
}

func eventLine(ev core.ChangeEvent) string {
	if ev.ID == "" {
		return fmt.Sprintf("change: %s", ev.Kind)
	}
	return fmt.Sprintf("change: %s %s", ev.Kind, ev.ID)
}

func studentLine(st *domain.Student) string {
	return fmt.Sprintf("%s :: %s --> Email: %s, Subjects: %d, Avg: %.2f",
		st.Name, st.ID, st.Email, len(st.Subjects), st.AverageMark())
}

func studentList(students []*domain.Student) string {
	if len(students) == 0 {
		return "[]"
	}
	parts := make([]string, 0, len(students))
	for _, st := range students {
		parts = append(parts, fmt.Sprintf("%s :: %s (%.2f)", st.Name, st.ID, st.AverageMark()))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

package tui

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/opsdeck/internal/fetch"
	"github.com/sadopc/opsdeck/internal/filter"
	"github.com/sadopc/opsdeck/internal/store"
)

type accountsModel struct {
	env    *env
	width  int
	height int

	accounts fetch.Loader[[]store.Account]
	projects fetch.Loader[[]store.Project]

	cursor    int
	detail    bool
	detailID  string
	search    searchBox
	filters   *filter.AccountFilter
	formType  string // "account", "edit_account", "filter"
	form      *huh.Form
	editingID string

	// Form field pointers (survive value copies)
	fields *accountForm
}

type accountForm struct {
	name, typ, platform, url, username, password string
	expiry, project                              string

	hostingProvider, hostingPlan, registrar, yearlyCost string
	followers, profileURL                               string
	provider, plan, monthlyCost, billingCycle           string
}

func newAccountsModel(e *env) accountsModel {
	return accountsModel{
		env:      e,
		accounts: fetch.New("accounts", e.store.ListAccounts, e.center),
		projects: fetch.New("projects", e.store.ListProjects, e.center),
		search:   newSearchBox("search name, url or username"),
		filters:  &filter.AccountFilter{},
		fields:   &accountForm{},
	}
}

func (a *accountsModel) setSize(w, h int) {
	a.width = w
	a.height = h
}

func (a accountsModel) formActive() bool { return a.form != nil || a.search.active }

func (a *accountsModel) refresh() tea.Cmd {
	return tea.Batch(a.accounts.Refresh(), a.projects.Refresh())
}

func (a accountsModel) showPasswords() bool {
	return a.env.setting("show_passwords", "false") == "true"
}

func (a accountsModel) receive(msg tea.Msg) (accountsModel, tea.Cmd, bool) {
	if ok, cmd := a.accounts.Update(msg); ok {
		a.cursor = clampCursor(a.cursor, len(a.visible()))
		return a, cmd, true
	}
	if ok, cmd := a.projects.Update(msg); ok {
		return a, cmd, true
	}
	return a, nil, false
}

func (a accountsModel) visible() []store.Account {
	return filter.Accounts(a.accounts.Data, a.search.query(), *a.filters, a.env.horizon())
}

func (a accountsModel) selected() (store.Account, bool) {
	list := a.visible()
	if a.cursor < 0 || a.cursor >= len(list) {
		return store.Account{}, false
	}
	return list[a.cursor], true
}

func (a accountsModel) byID(id string) (store.Account, bool) {
	i := slices.IndexFunc(a.accounts.Data, func(x store.Account) bool { return x.ID == id })
	if i < 0 {
		return store.Account{}, false
	}
	return a.accounts.Data[i], true
}

func (a accountsModel) update(msg tea.Msg) (accountsModel, tea.Cmd) {
	if a.form != nil {
		return a.updateForm(msg)
	}
	if a.search.active {
		var cmd tea.Cmd
		a.search, cmd = a.search.update(msg)
		a.cursor = clampCursor(a.cursor, len(a.visible()))
		return a, cmd
	}
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return a, nil
	}

	// shared by list and detail
	if key.Matches(km, keys.Passwords) {
		v := strconv.FormatBool(!a.showPasswords())
		a.env.setPref("show_passwords", v)
		sess, st := a.env.session, a.env.store
		return a, mutate(viewAccounts, "save password visibility", func() error {
			return st.SetSetting(sess, "show_passwords", v)
		})
	}

	if a.detail {
		switch {
		case key.Matches(km, keys.Back):
			a.detail = false
		case key.Matches(km, keys.Refresh):
			cmd := a.refresh()
			return a, cmd
		case key.Matches(km, keys.Edit):
			if acc, ok := a.byID(a.detailID); ok {
				return a.showAccountForm(&acc)
			}
		}
		return a, nil
	}

	switch {
	case key.Matches(km, keys.Up):
		if a.cursor > 0 {
			a.cursor--
		}
	case key.Matches(km, keys.Down):
		if a.cursor < len(a.visible())-1 {
			a.cursor++
		}
	case key.Matches(km, keys.Refresh):
		cmd := a.refresh()
		return a, cmd
	case key.Matches(km, keys.Search):
		var cmd tea.Cmd
		a.search, cmd = a.search.open()
		return a, cmd
	case key.Matches(km, keys.Filter):
		return a.showFilterForm()
	case key.Matches(km, keys.ClearFilter):
		*a.filters = filter.AccountFilter{}
		a.search.input.SetValue("")
		a.cursor = 0
	case key.Matches(km, keys.Enter):
		if acc, ok := a.selected(); ok {
			a.detail = true
			a.detailID = acc.ID
		}
	case key.Matches(km, keys.New):
		return a.showAccountForm(nil)
	case key.Matches(km, keys.Edit):
		if acc, ok := a.selected(); ok {
			return a.showAccountForm(&acc)
		}
	case key.Matches(km, keys.Delete):
		if acc, ok := a.selected(); ok {
			sess, st, id := a.env.session, a.env.store, acc.ID
			return a, mutate(viewAccounts, "delete account", func() error {
				return st.DeleteAccount(sess, id)
			})
		}
	}
	return a, nil
}

func (a accountsModel) showAccountForm(existing *store.Account) (accountsModel, tea.Cmd) {
	f := a.fields
	*f = accountForm{typ: string(store.AccountDomain), project: filter.NoProject}
	a.formType = "account"
	if existing != nil {
		a.formType = "edit_account"
		a.editingID = existing.ID
		*f = accountForm{
			name:     existing.Name,
			typ:      string(existing.Type),
			platform: existing.Platform,
			url:      existing.URL,
			username: existing.Username,
			password: existing.Password,
			project:  refValue(existing.ProjectID),
		}
		if f.project == "" {
			f.project = filter.NoProject
		}
		if existing.ExpiryDate != nil {
			f.expiry = formatDate(existing.ExpiryDate)
		}
		if d := existing.Domain; d != nil {
			f.hostingProvider, f.hostingPlan, f.registrar = d.HostingProvider, d.HostingPlan, d.Registrar
			if d.YearlyCost != nil {
				f.yearlyCost = strconv.FormatFloat(*d.YearlyCost, 'f', -1, 64)
			}
		}
		if s := existing.Social; s != nil {
			f.followers = strconv.FormatInt(s.Followers, 10)
			f.profileURL = s.ProfileURL
		}
		if s := existing.Service; s != nil {
			f.provider, f.plan, f.billingCycle = s.Provider, s.Plan, s.BillingCycle
			f.monthlyCost = strconv.FormatFloat(s.MonthlyCost, 'f', -1, 64)
		}
	}

	not := func(t store.AccountType) func() bool {
		return func() bool { return f.typ != string(t) }
	}
	platforms := append([]huh.Option[string]{huh.NewOption("(none)", "")}, huh.NewOptions(store.SocialPlatforms...)...)

	a.form = newForm(
		huh.NewGroup(
			huh.NewInput().Title("Name").Value(&f.name).Validate(required("name")),
			huh.NewSelect[string]().Title("Type").Options(stringOptions(store.AccountTypes)...).Value(&f.typ),
			huh.NewSelect[string]().Title("Project").Options(projectOptions(a.projects.Data, "No Project")...).Value(&f.project),
		),
		huh.NewGroup(
			huh.NewInput().Title("URL").Value(&f.url),
			huh.NewInput().Title("Username").Value(&f.username),
			huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&f.password),
			huh.NewInput().Title("Expiry date (YYYY-MM-DD)").Value(&f.expiry).Validate(validDate),
		),
		huh.NewGroup(
			huh.NewInput().Title("Hosting provider").Value(&f.hostingProvider),
			huh.NewInput().Title("Hosting plan").Value(&f.hostingPlan),
			huh.NewInput().Title("Registrar").Value(&f.registrar),
			huh.NewInput().Title("Yearly cost").Value(&f.yearlyCost).Validate(validFloat),
		).Title("Domain").WithHideFunc(not(store.AccountDomain)),
		huh.NewGroup(
			huh.NewSelect[string]().Title("Platform").Options(platforms...).Value(&f.platform),
			huh.NewInput().Title("Followers").Value(&f.followers).Validate(validCount),
			huh.NewInput().Title("Profile URL").Value(&f.profileURL),
		).Title("Social media").WithHideFunc(not(store.AccountSocialMedia)),
		huh.NewGroup(
			huh.NewInput().Title("Provider").Value(&f.provider),
			huh.NewInput().Title("Plan").Value(&f.plan),
			huh.NewInput().Title("Monthly cost").Value(&f.monthlyCost).Validate(validFloat),
			huh.NewSelect[string]().Title("Billing cycle").
				Options(huh.NewOptions("", "monthly", "yearly")...).Value(&f.billingCycle),
		).Title("Service").WithHideFunc(not(store.AccountService)),
	)
	return a, a.form.Init()
}

func validCount(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err != nil || n < 0 {
		return fmt.Errorf("not a whole number")
	}
	return nil
}

func (a accountsModel) showFilterForm() (accountsModel, tea.Cmd) {
	a.formType = "filter"
	f := a.filters

	types := append([]huh.Option[string]{anyOption("Any type")}, stringOptions(store.AccountTypes)...)
	platforms := append([]huh.Option[string]{anyOption("Any platform")}, huh.NewOptions(store.SocialPlatforms...)...)
	projects := append([]huh.Option[string]{anyOption("Any project")}, projectOptions(a.projects.Data, "No Project")...)
	expiry := []huh.Option[string]{
		anyOption("Any expiry"),
		huh.NewOption("Expired", string(filter.Expired)),
		huh.NewOption("Expiring soon", string(filter.ExpiringSoon)),
		huh.NewOption("Active", string(filter.Active)),
		huh.NewOption("No expiry", string(filter.NoExpiry)),
	}

	a.form = newForm(
		huh.NewGroup(
			huh.NewSelect[string]().Title("Type").Options(types...).Value(&f.Type),
			huh.NewSelect[string]().Title("Platform").Description("social media only").Options(platforms...).Value(&f.Platform),
			huh.NewSelect[string]().Title("Project").Options(projects...).Value(&f.ProjectID),
			huh.NewSelect[string]().Title("Expiry").Options(expiry...).Value(&f.ExpiryStatus),
		).Title("Filter accounts"),
	)
	return a, a.form.Init()
}

func (a accountsModel) updateForm(msg tea.Msg) (accountsModel, tea.Cmd) {
	form, cmd, state := stepForm(a.form, msg)
	a.form = form
	if state != formSubmitted {
		return a, cmd
	}
	a.form = nil
	if a.formType == "filter" {
		a.cursor = 0
		return a, nil
	}

	in := a.fields.input()
	sess, st := a.env.session, a.env.store
	if a.formType == "edit_account" {
		id := a.editingID
		return a, mutate(viewAccounts, "update account", func() error {
			return st.UpdateAccount(sess, id, in)
		})
	}
	return a, mutate(viewAccounts, "create account", func() error {
		_, err := st.CreateAccount(sess, in)
		return err
	})
}

// input converts validated form text into an AccountInput. Detail fields
// for other types are left out.
func (f accountForm) input() store.AccountInput {
	expiry, _ := parseDate(f.expiry)
	in := store.AccountInput{
		Name:       strings.TrimSpace(f.name),
		Type:       store.AccountType(f.typ),
		URL:        strings.TrimSpace(f.url),
		Username:   strings.TrimSpace(f.username),
		Password:   f.password,
		ExpiryDate: expiry,
		ProjectID:  parseRef(f.project),
	}
	switch in.Type {
	case store.AccountDomain:
		in.HostingProvider, in.HostingPlan, in.Registrar = f.hostingProvider, f.hostingPlan, f.registrar
		in.YearlyCost, _ = parseOptionalFloat(f.yearlyCost)
	case store.AccountSocialMedia:
		in.Platform = f.platform
		in.Followers, _ = strconv.ParseInt(strings.TrimSpace(f.followers), 10, 64)
		in.ProfileURL = f.profileURL
	case store.AccountService:
		in.ServiceProvider, in.ServicePlan, in.BillingCycle = f.provider, f.plan, f.billingCycle
		in.MonthlyCost, _ = parseOptionalFloat(f.monthlyCost)
	}
	return in
}

func (a accountsModel) view() string {
	w := a.width - 4
	if a.form != nil {
		title := map[string]string{"account": "New Account", "edit_account": "Edit Account", "filter": "Filter"}[a.formType]
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), "", a.form.View()))
	}
	if a.detail {
		return a.renderDetail(w)
	}
	return a.renderList(w)
}

func (a accountsModel) secret(pw string) string {
	if pw == "" {
		return "-"
	}
	if a.showPasswords() {
		return pw
	}
	return "••••••••"
}

func expiryLabel(exp filter.ExpiryStatus) string {
	switch exp {
	case filter.Expired:
		return errorStyle.Render("expired")
	case filter.ExpiringSoon:
		return warningStyle.Render("expiring")
	case filter.Active:
		return successStyle.Render("active")
	}
	return mutedStyle.Render("no expiry")
}

// expiryOf picks the most pressing status for display.
func expiryOf(acc store.Account, w filter.Window) string {
	statuses := filter.ClassifyExpiry(acc.ExpiryDate, w)
	if len(statuses) == 0 {
		return "-"
	}
	return expiryLabel(statuses[0])
}

func (a accountsModel) renderList(w int) string {
	active := a.filters.ActiveCount()
	if a.search.query() != "" {
		active++
	}
	rows := []string{titleStyle.Render("Accounts") + " " + badge(active)}
	if s := a.search.view(); s != "" {
		rows = append(rows, s)
	}
	if a.accounts.Loaded() {
		if banner := staleBanner(a.accounts.Err); banner != "" {
			rows = append(rows, banner)
		}
	}
	rows = append(rows, "")

	list := a.visible()
	empty := ""
	if len(list) == 0 {
		empty = "No accounts yet. Press n to add one."
		if len(a.accounts.Data) > 0 {
			empty = "No accounts match. Press F to clear filters."
		}
	}
	if s, ok := loadState(&a.accounts, empty); ok {
		rows = append(rows, s)
		return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
	}

	window := a.env.horizon()
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-24s %-12s %-16s %-18s %-12s %-11s %s",
		"Name", "Type", "Project", "Username", "Password", "Expiry", "")))
	for i, acc := range list {
		cursor, style := cursorPrefix(i == a.cursor)
		typ := lipgloss.NewStyle().Foreground(accountTypeColors[acc.Type]).Width(13).Render(string(acc.Type))
		line := style.Render(fmt.Sprintf("%s%-24s ", cursor, truncate(acc.Name, 24))) + typ +
			style.Render(fmt.Sprintf("%-16s %-18s %-12s %-11s ",
				truncate(projectName(acc), 16), truncate(acc.Username, 18),
				truncate(a.secret(acc.Password), 12), formatDate(acc.ExpiryDate))) +
			expiryOf(acc, window)
		rows = append(rows, line)
	}
	rows = append(rows, "", mutedStyle.Render("  n: new  e: edit  d: delete  enter: details  p: passwords  f: filter  /: search"))
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func projectName(acc store.Account) string {
	if acc.ProjectID == nil {
		return "No Project"
	}
	if acc.ProjectName == "" {
		return "Unknown"
	}
	return acc.ProjectName
}

func (a accountsModel) renderDetail(w int) string {
	acc, ok := a.byID(a.detailID)
	if !ok {
		return errorPanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			errorStyle.Render("Account not found"), "", mutedStyle.Render("esc: back")))
	}

	field := func(label, value string) string {
		if value == "" {
			value = "-"
		}
		return mutedStyle.Render(fmt.Sprintf("  %-16s", label)) + value
	}
	rows := []string{
		titleStyle.Render(acc.Name) + "  " + lipgloss.NewStyle().Foreground(accountTypeColors[acc.Type]).Render(string(acc.Type)),
		"",
		field("Project", projectName(acc)),
		field("URL", acc.URL),
		field("Username", acc.Username),
		field("Password", a.secret(acc.Password)),
		field("Expires", formatDate(acc.ExpiryDate)+"  "+expiryOf(acc, a.env.horizon())),
	}
	if d := acc.Domain; d != nil {
		cost := ""
		if d.YearlyCost != nil {
			cost = fmt.Sprintf("%.2f / year", *d.YearlyCost)
		}
		rows = append(rows, "", subtitleStyle.Render("Domain"),
			field("Hosting", strings.TrimSpace(d.HostingProvider+" "+d.HostingPlan)),
			field("Registrar", d.Registrar),
			field("Cost", cost))
	}
	if s := acc.Social; s != nil {
		rows = append(rows, "", subtitleStyle.Render("Social media"),
			field("Platform", s.Platform),
			field("Followers", strconv.FormatInt(s.Followers, 10)),
			field("Profile", s.ProfileURL))
	}
	if s := acc.Service; s != nil {
		rows = append(rows, "", subtitleStyle.Render("Service"),
			field("Provider", strings.TrimSpace(s.Provider+" "+s.Plan)),
			field("Cost", fmt.Sprintf("%.2f / month", s.MonthlyCost)),
			field("Billing", s.BillingCycle))
	}
	rows = append(rows, "", mutedStyle.Render("  e: edit  p: passwords  esc: back"))
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

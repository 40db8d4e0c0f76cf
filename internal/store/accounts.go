package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const accountSelect = `
	SELECT a.id, a.name, a.type, COALESCE(a.platform, ''), a.url, a.username, a.password,
	       a.expiry_date, a.project_id, COALESCE(p.name, ''), a.created_by, a.created_at, a.updated_at,
	       d.account_id, d.hosting_provider, d.hosting_plan, d.registrar, d.yearly_cost,
	       sm.account_id, sm.platform, sm.followers, sm.profile_url,
	       sv.account_id, sv.provider, sv.plan, sv.monthly_cost, sv.billing_cycle
	FROM accounts a
	LEFT JOIN projects p ON p.id = a.project_id
	LEFT JOIN domain_details d ON d.account_id = a.id
	LEFT JOIN social_media_details sm ON sm.account_id = a.id
	LEFT JOIN service_details sv ON sv.account_id = a.id`

func scanAccount(row interface{ Scan(...any) error }, a *Account) error {
	var typ, createdAt, updatedAt string
	var expiry sql.NullString
	var projectID sql.NullInt64

	var dID, dProvider, dPlan, dRegistrar sql.NullString
	var dCost sql.NullFloat64
	var smID, smPlatform, smURL sql.NullString
	var smFollowers sql.NullInt64
	var svID, svProvider, svPlan, svCycle sql.NullString
	var svCost sql.NullFloat64

	err := row.Scan(&a.ID, &a.Name, &typ, &a.Platform, &a.URL, &a.Username, &a.Password,
		&expiry, &projectID, &a.ProjectName, &a.CreatedBy, &createdAt, &updatedAt,
		&dID, &dProvider, &dPlan, &dRegistrar, &dCost,
		&smID, &smPlatform, &smFollowers, &smURL,
		&svID, &svProvider, &svPlan, &svCost, &svCycle)
	if err != nil {
		return err
	}
	a.Type = AccountType(typ)
	a.ExpiryDate = nullTime(expiry)
	a.ProjectID = nullInt(projectID)
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)

	if dID.Valid {
		a.Domain = &DomainDetails{
			HostingProvider: dProvider.String,
			HostingPlan:     dPlan.String,
			Registrar:       dRegistrar.String,
		}
		if dCost.Valid {
			c := dCost.Float64
			a.Domain.YearlyCost = &c
		}
	}
	if smID.Valid {
		a.Social = &SocialMediaDetails{
			Platform:   smPlatform.String,
			Followers:  smFollowers.Int64,
			ProfileURL: smURL.String,
		}
	}
	if svID.Valid {
		a.Service = &ServiceDetails{
			Provider:     svProvider.String,
			Plan:         svPlan.String,
			MonthlyCost:  svCost.Float64,
			BillingCycle: svCycle.String,
		}
	}
	return nil
}

// ListAccounts returns all accounts, newest first, with project names and
// type-specific details joined in.
func (s *Store) ListAccounts() ([]Account, error) {
	rows, err := s.db.Query(accountSelect + ` ORDER BY a.created_at DESC, a.name`)
	if err != nil {
		return nil, queryErr("list accounts", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var a Account
		if err := scanAccount(rows, &a); err != nil {
			return nil, queryErr("scan account", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// ListAccountsByProject returns the project's accounts; an unknown project
// yields an empty slice.
func (s *Store) ListAccountsByProject(projectID int64) ([]Account, error) {
	rows, err := s.db.Query(accountSelect+` WHERE a.project_id = ? ORDER BY a.created_at DESC, a.name`, projectID)
	if err != nil {
		return nil, queryErr("list project accounts", err)
	}
	defer rows.Close()

	accounts := []Account{}
	for rows.Next() {
		var a Account
		if err := scanAccount(rows, &a); err != nil {
			return nil, queryErr("scan account", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *Store) GetAccount(id string) (*Account, error) {
	a := &Account{}
	err := scanAccount(s.db.QueryRow(accountSelect+` WHERE a.id = ?`, id), a)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, queryErr(fmt.Sprintf("get account %s", id), err)
	}
	return a, nil
}

func validateAccount(in *AccountInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return &ValidationError{Field: "name", Err: errors.New("required")}
	}
	switch in.Type {
	case AccountDomain, AccountSocialMedia, AccountEmail, AccountRepository, AccountService:
	default:
		return &ValidationError{Field: "type", Err: fmt.Errorf("unknown account type %q", in.Type)}
	}
	if in.Type != AccountSocialMedia {
		in.Platform = ""
	}
	return nil
}

func platformArg(p string) any {
	if p == "" {
		return nil
	}
	return p
}

// CreateAccount stores the base account and then at most one detail
// record for its type. The two inserts are separate statements: when the
// detail insert fails the base row stays and the error is returned as a
// *ValidationError.
func (s *Store) CreateAccount(sess *Session, in AccountInput) (*Account, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if err := validateAccount(&in); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	ts := now()
	_, err := s.db.Exec(
		`INSERT INTO accounts (id, name, type, platform, url, username, password, expiry_date, project_id, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.Name, string(in.Type), platformArg(in.Platform), in.URL, in.Username, in.Password,
		dateArg(in.ExpiryDate), in.ProjectID, sess.User.ID, ts, ts,
	)
	if err != nil {
		return nil, queryErr("insert account", err)
	}

	if err := s.insertAccountDetails(id, in); err != nil {
		return nil, err
	}
	return s.GetAccount(id)
}

func (s *Store) insertAccountDetails(id string, in AccountInput) error {
	var err error
	var field string
	switch {
	case in.Type == AccountDomain && hasDomainDetails(in):
		field = "domain details"
		_, err = s.db.Exec(
			`INSERT INTO domain_details (account_id, hosting_provider, hosting_plan, registrar, yearly_cost) VALUES (?, ?, ?, ?, ?)`,
			id, in.HostingProvider, in.HostingPlan, in.Registrar, in.YearlyCost,
		)
	case in.Type == AccountSocialMedia && in.Platform != "":
		field = "social media details"
		_, err = s.db.Exec(
			`INSERT INTO social_media_details (account_id, platform, followers, profile_url) VALUES (?, ?, ?, ?)`,
			id, in.Platform, in.Followers, in.ProfileURL,
		)
	case in.Type == AccountService && in.MonthlyCost != nil:
		field = "service details"
		cycle := in.BillingCycle
		if cycle == "" {
			cycle = "monthly"
		}
		_, err = s.db.Exec(
			`INSERT INTO service_details (account_id, provider, plan, monthly_cost, billing_cycle) VALUES (?, ?, ?, ?, ?)`,
			id, in.ServiceProvider, in.ServicePlan, *in.MonthlyCost, cycle,
		)
	}
	if err != nil {
		return &ValidationError{Field: field, Err: err}
	}
	return nil
}

func hasDomainDetails(in AccountInput) bool {
	return in.HostingProvider != "" || in.HostingPlan != "" || in.Registrar != "" || in.YearlyCost != nil
}

// UpdateAccount rewrites the base record and replaces its detail record.
func (s *Store) UpdateAccount(sess *Session, id string, in AccountInput) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	if err := validateAccount(&in); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return queryErr("begin update account", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(
		`UPDATE accounts SET name = ?, type = ?, platform = ?, url = ?, username = ?, password = ?, expiry_date = ?, project_id = ?, updated_at = ?
		 WHERE id = ?`,
		in.Name, string(in.Type), platformArg(in.Platform), in.URL, in.Username, in.Password,
		dateArg(in.ExpiryDate), in.ProjectID, now(), id,
	)
	if err != nil {
		return queryErr("update account", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	for _, table := range []string{"domain_details", "social_media_details", "service_details"} {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE account_id = ?`, id); err != nil {
			return queryErr("clear account details", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return queryErr("commit update account", err)
	}
	return s.insertAccountDetails(id, in)
}

func (s *Store) DeleteAccount(sess *Session, id string) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	res, err := s.db.Exec(`DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return queryErr("delete account", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func dateArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

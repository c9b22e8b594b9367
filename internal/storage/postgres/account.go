package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// Role constants for account privilege levels.
const (
	RolePlayer = "player"
	RoleAdmin  = "admin"
)

// ValidRole reports whether role is a recognised privilege level.
func ValidRole(role string) bool {
	switch role {
	case RolePlayer, RoleAdmin:
		return true
	}
	return false
}

// ErrInvalidRole is returned when an unrecognised role string is supplied.
var ErrInvalidRole = errors.New("invalid role")

// Account represents a login identity.
type Account struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	LastLoginAt  time.Time
}

// IsAdmin reports whether the account holds the admin role.
func (a Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// ErrAccountNotFound is returned when an account lookup yields no results.
var ErrAccountNotFound = errors.New("account not found")

// ErrAccountExists is returned when attempting to create a duplicate username.
var ErrAccountExists = errors.New("account already exists")

// ErrInvalidCredentials is returned when authentication fails.
var ErrInvalidCredentials = errors.New("invalid credentials")

const accountColumns = `id, username, password_hash, role, created_at, last_login_at`

func scanAccount(row pgx.Row) (Account, error) {
	var acct Account
	err := row.Scan(&acct.ID, &acct.Username, &acct.PasswordHash, &acct.Role, &acct.CreatedAt, &acct.LastLoginAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, fmt.Errorf("querying account: %w", err)
	}
	return acct, nil
}

// AccountRepository provides account persistence operations.
type AccountRepository struct {
	db *pgxpool.Pool
}

// NewAccountRepository creates an AccountRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewAccountRepository(db *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts a new account with a bcrypt-hashed password and no game
// state. Register is the path players take.
//
// Precondition: username and password must be non-empty; role must be valid.
// Postcondition: Returns the created Account, or ErrAccountExists if the
// username is taken.
func (r *AccountRepository) Create(ctx context.Context, username, password, role string) (Account, error) {
	if !ValidRole(role) {
		return Account{}, ErrInvalidRole
	}
	hash, err := HashPassword(password)
	if err != nil {
		return Account{}, fmt.Errorf("hashing password: %w", err)
	}
	return insertAccount(ctx, r.db, username, hash, role)
}

// Register creates an account and its starter player state in one
// transaction.
//
// Precondition: starter must satisfy Player.Validate; its AccountID is ignored.
// Postcondition: Either both rows exist or neither does.
func (r *AccountRepository) Register(ctx context.Context, username, password string, starter Player) (Account, Player, error) {
	if err := starter.Validate(); err != nil {
		return Account{}, Player{}, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return Account{}, Player{}, fmt.Errorf("hashing password: %w", err)
	}

	var acct Account
	err = pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var err error
		acct, err = insertAccount(ctx, tx, username, hash, RolePlayer)
		if err != nil {
			return err
		}
		starter.AccountID = acct.ID
		starter.Username = acct.Username
		starter, err = insertPlayer(ctx, tx, starter)
		return err
	})
	if err != nil {
		return Account{}, Player{}, err
	}
	return acct, starter, nil
}

func insertAccount(ctx context.Context, q querier, username, hash, role string) (Account, error) {
	acct, err := scanAccount(q.QueryRow(ctx,
		`INSERT INTO accounts (username, password_hash, role)
		 VALUES ($1, $2, $3)
		 RETURNING `+accountColumns,
		username, hash, role,
	))
	if err != nil {
		if isDuplicateKeyError(err) {
			return Account{}, ErrAccountExists
		}
		return Account{}, fmt.Errorf("inserting account: %w", err)
	}
	return acct, nil
}

// Authenticate verifies credentials, stamps last_login_at and returns the
// matching account.
//
// Postcondition: Returns the Account if credentials are valid,
// ErrAccountNotFound if the username doesn't exist,
// or ErrInvalidCredentials if the password is wrong.
func (r *AccountRepository) Authenticate(ctx context.Context, username, password string) (Account, error) {
	acct, err := r.GetByUsername(ctx, username)
	if err != nil {
		return Account{}, err
	}
	if !CheckPassword(password, acct.PasswordHash) {
		return Account{}, ErrInvalidCredentials
	}

	err = r.db.QueryRow(ctx,
		`UPDATE accounts SET last_login_at = NOW() WHERE id = $1 RETURNING last_login_at`,
		acct.ID,
	).Scan(&acct.LastLoginAt)
	if err != nil {
		return Account{}, fmt.Errorf("stamping login: %w", err)
	}
	return acct, nil
}

// GetByUsername retrieves an account by username.
//
// Postcondition: Returns the Account or ErrAccountNotFound.
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (Account, error) {
	return scanAccount(r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE username = $1`,
		username,
	))
}

// GetByID retrieves an account by id.
//
// Postcondition: Returns the Account or ErrAccountNotFound.
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (Account, error) {
	return scanAccount(r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`,
		id,
	))
}

// SetRole updates the role for the given account.
//
// Precondition: role must be a valid role string (use ValidRole to check).
// Postcondition: The account's role is updated, or ErrInvalidRole / ErrAccountNotFound is returned.
func (r *AccountRepository) SetRole(ctx context.Context, accountID int64, role string) error {
	if !ValidRole(role) {
		return ErrInvalidRole
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE accounts SET role = $1 WHERE id = $2`,
		role, accountID,
	)
	if err != nil {
		return fmt.Errorf("updating role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// DeleteInactive removes player accounts whose last login is before cutoff.
// Admin accounts are never removed. Player state cascades.
//
// Postcondition: Returns the usernames that were deleted.
func (r *AccountRepository) DeleteInactive(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`DELETE FROM accounts
		 WHERE last_login_at < $1 AND role <> $2
		 RETURNING username`,
		cutoff, RoleAdmin,
	)
	if err != nil {
		return nil, fmt.Errorf("deleting inactive accounts: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collecting deleted accounts: %w", err)
	}
	return names, nil
}

// HashPassword creates a bcrypt hash of the given password.
//
// Precondition: password must be non-empty.
// Postcondition: Returns a bcrypt hash string.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against a bcrypt hash.
//
// Postcondition: Returns true if password matches the hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}

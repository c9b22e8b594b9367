package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bitcory/knight/internal/game/economy"
	"github.com/bitcory/knight/internal/game/ranking"
	"github.com/bitcory/knight/internal/game/weapon"
)

// ErrPlayerNotFound is returned when no player state exists for an account.
var ErrPlayerNotFound = errors.New("player not found")

// ErrStaleSnapshot is returned when a compare-and-swap update finds the row
// changed since it was read.
var ErrStaleSnapshot = errors.New("stale snapshot")

// Player is the persisted game state of one account.
type Player struct {
	AccountID int64
	Username  string
	Role      string
	Stats     economy.Stats
	Weapon    weapon.Weapon
	UpdatedAt time.Time
}

// NewStarterPlayer returns the state a freshly registered account receives.
func NewStarterPlayer() Player {
	return Player{Role: RolePlayer, Stats: economy.NewStarter(), Weapon: weapon.NewStarter()}
}

// Validate checks the row-level invariants before a write.
func (p Player) Validate() error {
	if err := p.Stats.Validate(); err != nil {
		return err
	}
	w := p.Weapon
	switch {
	case !w.Type.Valid():
		return fmt.Errorf("invalid weapon type %q", w.Type)
	case !w.Element.Valid():
		return fmt.Errorf("invalid element %q", w.Element)
	case w.Level < 0 || w.Level > weapon.MaxLevel:
		return fmt.Errorf("weapon level %d out of range", w.Level)
	case w.ElementLevel < 0 || w.ElementLevel > weapon.MaxElementLevel:
		return fmt.Errorf("element level %d out of range", w.ElementLevel)
	case w.ID == "":
		return errors.New("weapon id must be set")
	}
	return nil
}

// Entry projects p onto a leaderboard row.
func (p Player) Entry() ranking.Entry {
	return ranking.Entry{
		AccountID:  p.AccountID,
		Name:       p.Username,
		Wins:       p.Stats.Wins,
		Losses:     p.Stats.Losses,
		Level:      p.Weapon.Level,
		WeaponName: p.Weapon.Name,
	}
}

// Entries projects every player onto leaderboard rows.
func Entries(players []Player) []ranking.Entry {
	out := make([]ranking.Entry, len(players))
	for i, p := range players {
		out[i] = p.Entry()
	}
	return out
}

const playerSelect = `SELECT p.account_id, a.username, a.role,
	p.gold, p.scrolls, p.wins, p.losses, p.last_attendance_at,
	p.weapon_id, p.weapon_type, p.weapon_level, p.weapon_name, p.weapon_description,
	p.base_damage, p.total_enhance_cost, p.element, p.element_level, p.updated_at
	FROM players p JOIN accounts a ON a.id = p.account_id`

func scanPlayer(row pgx.Row) (Player, error) {
	var (
		p          Player
		attendance *time.Time
		wType      string
		element    string
	)
	err := row.Scan(
		&p.AccountID, &p.Username, &p.Role,
		&p.Stats.Gold, &p.Stats.Scrolls, &p.Stats.Wins, &p.Stats.Losses, &attendance,
		&p.Weapon.ID, &wType, &p.Weapon.Level, &p.Weapon.Name, &p.Weapon.Description,
		&p.Weapon.BaseDamage, &p.Weapon.TotalEnhanceCost, &element, &p.Weapon.ElementLevel, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Player{}, ErrPlayerNotFound
		}
		return Player{}, fmt.Errorf("scanning player: %w", err)
	}
	p.Weapon.Type = weapon.Type(wType)
	p.Weapon.Element = weapon.Element(element)
	if attendance != nil {
		p.Stats.LastAttendance = *attendance
	}
	return p, nil
}

func attendanceArg(s economy.Stats) *time.Time {
	if s.LastAttendance.IsZero() {
		return nil
	}
	t := s.LastAttendance
	return &t
}

// PlayerRepository persists player stats and weapons.
type PlayerRepository struct {
	db *pgxpool.Pool
}

// NewPlayerRepository creates a PlayerRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewPlayerRepository(db *pgxpool.Pool) *PlayerRepository {
	return &PlayerRepository{db: db}
}

func insertPlayer(ctx context.Context, q querier, p Player) (Player, error) {
	w := p.Weapon
	err := q.QueryRow(ctx,
		`INSERT INTO players (account_id, gold, scrolls, wins, losses, last_attendance_at,
			weapon_id, weapon_type, weapon_level, weapon_name, weapon_description,
			base_damage, total_enhance_cost, element, element_level)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 RETURNING updated_at`,
		p.AccountID, p.Stats.Gold, p.Stats.Scrolls, p.Stats.Wins, p.Stats.Losses, attendanceArg(p.Stats),
		w.ID, string(w.Type), w.Level, w.Name, w.Description,
		w.BaseDamage, w.TotalEnhanceCost, string(w.Element), w.ElementLevel,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return Player{}, fmt.Errorf("inserting player: %w", err)
	}
	return p, nil
}

// Get loads the player state for accountID.
//
// Postcondition: Returns the Player or ErrPlayerNotFound.
func (r *PlayerRepository) Get(ctx context.Context, accountID int64) (Player, error) {
	return scanPlayer(r.db.QueryRow(ctx, playerSelect+` WHERE p.account_id = $1`, accountID))
}

// GetByUsername loads the player state for the account named username.
//
// Postcondition: Returns the Player or ErrPlayerNotFound.
func (r *PlayerRepository) GetByUsername(ctx context.Context, username string) (Player, error) {
	return scanPlayer(r.db.QueryRow(ctx, playerSelect+` WHERE a.username = $1`, username))
}

// ListAll returns every player ordered by account id. It is the population
// snapshot used for the leaderboard and opponent selection.
func (r *PlayerRepository) ListAll(ctx context.Context) ([]Player, error) {
	rows, err := r.db.Query(ctx, playerSelect+` ORDER BY p.account_id`)
	if err != nil {
		return nil, fmt.Errorf("listing players: %w", err)
	}
	defer rows.Close()

	var out []Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating players: %w", err)
	}
	return out, nil
}

// Save writes p's stats and weapon in a single statement.
//
// Precondition: p must satisfy Validate.
// Postcondition: Returns p with UpdatedAt refreshed, or ErrPlayerNotFound.
func (r *PlayerRepository) Save(ctx context.Context, p Player) (Player, error) {
	return savePlayer(ctx, r.db, p)
}

func savePlayer(ctx context.Context, q querier, p Player) (Player, error) {
	if err := p.Validate(); err != nil {
		return Player{}, fmt.Errorf("saving player %d: %w", p.AccountID, err)
	}
	w := p.Weapon
	err := q.QueryRow(ctx,
		`UPDATE players SET
			gold = $2, scrolls = $3, wins = $4, losses = $5, last_attendance_at = $6,
			weapon_id = $7, weapon_type = $8, weapon_level = $9, weapon_name = $10,
			weapon_description = $11, base_damage = $12, total_enhance_cost = $13,
			element = $14, element_level = $15, updated_at = NOW()
		 WHERE account_id = $1
		 RETURNING updated_at`,
		p.AccountID, p.Stats.Gold, p.Stats.Scrolls, p.Stats.Wins, p.Stats.Losses, attendanceArg(p.Stats),
		w.ID, string(w.Type), w.Level, w.Name, w.Description,
		w.BaseDamage, w.TotalEnhanceCost, string(w.Element), w.ElementLevel,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Player{}, ErrPlayerNotFound
		}
		return Player{}, fmt.Errorf("updating player: %w", err)
	}
	return p, nil
}

// SaveWithLoot saves attacker and debits loot from the victim in one
// transaction. The debit only applies while the victim still holds
// expectedGold.
//
// Precondition: 0 <= loot <= expectedGold.
// Postcondition: Returns ErrStaleSnapshot with nothing written when the
// victim's gold changed since it was read.
func (r *PlayerRepository) SaveWithLoot(ctx context.Context, attacker Player, victimID, expectedGold, loot int64) (Player, error) {
	if loot < 0 || loot > expectedGold {
		return Player{}, fmt.Errorf("loot %d outside [0,%d]: %w", loot, expectedGold, economy.ErrInvalidAmount)
	}
	var saved Player
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE players SET gold = gold - $3, updated_at = NOW()
			 WHERE account_id = $1 AND gold = $2`,
			victimID, expectedGold, loot,
		)
		if err != nil {
			return fmt.Errorf("debiting loot: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrStaleSnapshot
		}
		saved, err = savePlayer(ctx, tx, attacker)
		return err
	})
	if err != nil {
		return Player{}, err
	}
	return saved, nil
}

// ResetAll restores every non-admin player to the starter state. Each player
// receives a fresh weapon id.
//
// Postcondition: Returns the number of players reset.
func (r *PlayerRepository) ResetAll(ctx context.Context) (int64, error) {
	starter := economy.NewStarter()
	w := weapon.NewStarter()
	tag, err := r.db.Exec(ctx,
		`UPDATE players p SET
			gold = $1, scrolls = $2, wins = 0, losses = 0, last_attendance_at = NULL,
			weapon_id = gen_random_uuid(), weapon_type = $3, weapon_level = 0, weapon_name = $4,
			weapon_description = $5, base_damage = $6, total_enhance_cost = 0,
			element = '', element_level = 0, updated_at = NOW()
		 FROM accounts a
		 WHERE a.id = p.account_id AND a.role <> $7`,
		starter.Gold, starter.Scrolls, string(w.Type), w.Name, w.Description, w.BaseDamage, RoleAdmin,
	)
	if err != nil {
		return 0, fmt.Errorf("resetting players: %w", err)
	}
	return tag.RowsAffected(), nil
}

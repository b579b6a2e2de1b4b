package database

import (
	"time"
)

func (db *PgAccountRepository) CreateAccount(accountParams CreateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (username, email, password_hash, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, username, email, created_at",
		accountParams.Username,
		accountParams.EmailAddress,
		accountParams.PasswordHash,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.CreatedAt,
	)

	return u, err
}

func (db *PgAccountRepository) GetAccountByEmail(email string) (User, error) {
	res := db.conn.QueryRow(
		"SELECT id, username, email, password_hash, created_at, updated_at "+
			"FROM accounts WHERE email = $1",
		email,
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.PasswordHash,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgAccountRepository) GetAccountByUsername(username string) (User, error) {
	res := db.conn.QueryRow(
		"SELECT id, username, email, password_hash, created_at, updated_at "+
			"FROM accounts WHERE username = $1",
		username,
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.PasswordHash,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

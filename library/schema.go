package library

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS books (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		author TEXT NOT NULL,
		isbn TEXT NOT NULL UNIQUE,
		publisher TEXT,
		publication_year INTEGER,
		price REAL,
		quantity INTEGER NOT NULL CHECK (quantity >= 0),
		available INTEGER NOT NULL,
		description TEXT,
		location TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CHECK (available >= 0 AND available <= quantity)
	);`,
	`CREATE TABLE IF NOT EXISTS members (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		phone TEXT,
		address TEXT,
		join_date DATETIME NOT NULL,
		membership_type TEXT NOT NULL DEFAULT 'Regular',
		max_books INTEGER NOT NULL DEFAULT 5 CHECK (max_books > 0),
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE TABLE IF NOT EXISTS loans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		book_id INTEGER NOT NULL REFERENCES books(id),
		member_id INTEGER NOT NULL REFERENCES members(id),
		borrow_date DATETIME NOT NULL,
		due_date DATETIME NOT NULL,
		return_date DATETIME,
		status TEXT NOT NULL DEFAULT 'Active' CHECK (status IN ('Active', 'Returned')),
		CHECK ((return_date IS NULL AND status = 'Active') OR (return_date IS NOT NULL AND status = 'Returned'))
	);`,
	`CREATE INDEX IF NOT EXISTS idx_loans_member ON loans(member_id, borrow_date);`,
	`CREATE INDEX IF NOT EXISTS idx_loans_open_book ON loans(book_id) WHERE return_date IS NULL;`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS books (
		id BIGSERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		author TEXT NOT NULL,
		isbn TEXT NOT NULL UNIQUE,
		publisher TEXT,
		publication_year BIGINT,
		price DOUBLE PRECISION,
		quantity BIGINT NOT NULL CHECK (quantity >= 0),
		available BIGINT NOT NULL,
		description TEXT,
		location TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CHECK (available >= 0 AND available <= quantity)
	);`,
	`CREATE TABLE IF NOT EXISTS members (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		phone TEXT,
		address TEXT,
		join_date TIMESTAMPTZ NOT NULL,
		membership_type TEXT NOT NULL DEFAULT 'Regular',
		max_books BIGINT NOT NULL DEFAULT 5 CHECK (max_books > 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE TABLE IF NOT EXISTS loans (
		id BIGSERIAL PRIMARY KEY,
		book_id BIGINT NOT NULL REFERENCES books(id),
		member_id BIGINT NOT NULL REFERENCES members(id),
		borrow_date TIMESTAMPTZ NOT NULL,
		due_date TIMESTAMPTZ NOT NULL,
		return_date TIMESTAMPTZ,
		status TEXT NOT NULL DEFAULT 'Active' CHECK (status IN ('Active', 'Returned')),
		CHECK ((return_date IS NULL AND status = 'Active') OR (return_date IS NOT NULL AND status = 'Returned'))
	);`,
	`CREATE INDEX IF NOT EXISTS idx_loans_member ON loans(member_id, borrow_date);`,
	`CREATE INDEX IF NOT EXISTS idx_loans_open_book ON loans(book_id) WHERE return_date IS NULL;`,
}

func schemaStatements(driver StorageDriver) []string {
	if driver == DriverPostgres {
		return postgresSchema
	}
	return sqliteSchema
}

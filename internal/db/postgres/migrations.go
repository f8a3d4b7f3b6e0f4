package postgres

// Migration — одна версия схемы.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Migrations встроены в код для упрощения деплоя.
var Migrations = []Migration{
	{1, "users", migration001Users},
	{2, "coin_ledger", migration002CoinLedger},
	{3, "premium", migration003Premium},
	{4, "admin", migration004Admin},
}

var migration001Users = `
CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    username VARCHAR(255) UNIQUE,
    display_name VARCHAR(255) NOT NULL DEFAULT '',
    coins BIGINT NOT NULL DEFAULT 0,
    is_premium BOOLEAN NOT NULL DEFAULT FALSE,
    is_fake BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT users_coins_non_negative CHECK (coins >= 0)
);
CREATE INDEX IF NOT EXISTS idx_users_is_premium ON users(is_premium) WHERE is_premium;
`

var migration002CoinLedger = `
CREATE TABLE IF NOT EXISTS coin_transactions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id),
    transaction_type VARCHAR(32) NOT NULL,
    amount BIGINT NOT NULL CHECK (amount <> 0),
    balance_after BIGINT NOT NULL CHECK (balance_after >= 0),
    description TEXT NOT NULL DEFAULT '',
    reference_type VARCHAR(64),
    reference_id VARCHAR(255),
    package_id BIGINT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_coin_transactions_user ON coin_transactions(user_id, created_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_coin_transactions_created_at ON coin_transactions(created_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_coin_transactions_type ON coin_transactions(transaction_type);
`

var migration003Premium = `
CREATE TABLE IF NOT EXISTS premium_packages (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    duration_type VARCHAR(16) NOT NULL CHECK (duration_type IN ('WEEKLY', 'MONTHLY', 'YEARLY')),
    duration_value INTEGER NOT NULL CHECK (duration_value > 0),
    price NUMERIC(12,2) NOT NULL,
    currency CHAR(3) NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS subscriptions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id),
    package_id BIGINT NOT NULL REFERENCES premium_packages(id),
    starts_at TIMESTAMPTZ NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    is_auto_renewable BOOLEAN NOT NULL DEFAULT FALSE,
    payment_method VARCHAR(32) NOT NULL,
    transaction_id VARCHAR(255),
    amount_paid NUMERIC(12,2) NOT NULL,
    currency CHAR(3) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_subscriptions_user ON subscriptions(user_id, created_at DESC);
CREATE UNIQUE INDEX IF NOT EXISTS subscriptions_one_active_per_user ON subscriptions(user_id) WHERE is_active;
`

var migration004Admin = `
CREATE TABLE IF NOT EXISTS admin_sessions (
    id BIGSERIAL PRIMARY KEY,
    subject VARCHAR(64) NOT NULL,
    session_token VARCHAR(255) UNIQUE NOT NULL,
    authenticated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    expires_at TIMESTAMPTZ NOT NULL,
    last_activity TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    is_active BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS idx_admin_sessions_subject ON admin_sessions(subject);
CREATE TABLE IF NOT EXISTS admin_login_attempts (
    id BIGSERIAL PRIMARY KEY,
    subject VARCHAR(64) NOT NULL,
    attempt_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    success BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_admin_login_attempts_subject ON admin_login_attempts(subject, attempt_time DESC);
`

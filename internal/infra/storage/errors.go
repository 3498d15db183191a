package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jose-valero/kodari-bot/internal/domain"
)

// dbErr envuelve err con op. Si la DB no respondió (conexión caída, timeout,
// red) también envuelve domain.ErrConnectivity.
func dbErr(op string, err error) error {
	if isConnErr(err) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrConnectivity, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isConnErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	// Timeout y SafeToRetry: el pedido nunca llegó al server o venció
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	var cerr *pgconn.ConnectError
	if errors.As(err, &cerr) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr)
}

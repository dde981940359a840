package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/linemk/shop-orders/internal/domain/models"
)

var ErrEmptyIdentity = errors.New("identity filter has no channels")

// IdentityFilter строит предикат вида (npub = $n OR email = $m)
// по тем каналам, которые реально заданы.
type IdentityFilter struct {
	NPubColumn  string
	EmailColumn string
	Target      models.NotificationTarget
}

// Clause возвращает SQL-условие и аргументы; нумерация плейсхолдеров начинается с firstArg.
func (f IdentityFilter) Clause(firstArg int) (string, []any, error) {
	var (
		conds []string
		args  []any
	)
	if npub, ok := f.Target.NPub.Get(); ok {
		conds = append(conds, fmt.Sprintf("%s = $%d", f.NPubColumn, firstArg+len(args)))
		args = append(args, npub)
	}
	if email, ok := f.Target.Email.Get(); ok {
		conds = append(conds, fmt.Sprintf("%s = $%d", f.EmailColumn, firstArg+len(args)))
		args = append(args, email)
	}
	if len(conds) == 0 {
		return "", nil, ErrEmptyIdentity
	}
	return "(" + strings.Join(conds, " OR ") + ")", args, nil
}

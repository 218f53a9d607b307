package castest

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	jwt "github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
)

// TicketPrefix 是 service ticket 的前缀
const TicketPrefix = "ST-"

var (
	errTicketUnknown = errors.New("ticket isn't found")
	errTicketUsed    = errors.New("ticket is already used")
	errTicketExpired = errors.New("ticket is expired")
)

// Ticket 票据对象
type Ticket struct {
	Ticket    string
	Username  string
	Service   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Used      bool
}

// tickets issues signed, single-use service tickets and remembers them so
// that the server can send logout requests later.
type tickets struct {
	signingMethod   jwt.SigningMethod
	secret          []byte
	expiredInternal time.Duration
	keyFunc         func(t *jwt.Token) (interface{}, error)

	mutex   sync.Mutex
	tickets map[string]*Ticket
}

func newTickets(secret []byte, expiredInternal time.Duration) *tickets {
	if expiredInternal < 1*time.Second {
		expiredInternal = 5 * time.Minute
	}
	signingMethod := jwt.SigningMethodHS256
	th := &tickets{
		signingMethod:   signingMethod,
		secret:          secret,
		expiredInternal: expiredInternal,
		tickets:         map[string]*Ticket{},
	}
	th.keyFunc = func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != signingMethod.Alg() {
			return nil, fmt.Errorf("Unexpected jwt signing method=%v", t.Method.Alg())
		}
		return th.secret, nil
	}
	return th
}

func (th *tickets) issue(username, service string) (*Ticket, error) {
	issuedAt := time.Now()
	expiresAt := issuedAt.Add(th.expiredInternal)

	token := jwt.NewWithClaims(th.signingMethod, &jwt.StandardClaims{
		Audience:  service,
		ExpiresAt: expiresAt.Unix(),
		Id:        uuid.NewString(),
		IssuedAt:  issuedAt.Unix(),
		Issuer:    "castest",
		Subject:   username,
	})
	signed, err := token.SignedString(th.secret)
	if err != nil {
		return nil, errors.New("生成 ticket 时对令牌签名发生错误 - " + err.Error())
	}

	ticket := &Ticket{
		Ticket:    TicketPrefix + signed,
		Username:  username,
		Service:   service,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}

	th.mutex.Lock()
	th.tickets[ticket.Ticket] = ticket
	th.mutex.Unlock()
	return ticket, nil
}

// redeem validates ticket once. Later calls for the same ticket fail.
func (th *tickets) redeem(ticketString string) (*Ticket, error) {
	if !strings.HasPrefix(ticketString, TicketPrefix) {
		return nil, errTicketUnknown
	}
	claims := &jwt.StandardClaims{}
	token, err := jwt.ParseWithClaims(strings.TrimPrefix(ticketString, TicketPrefix), claims, th.keyFunc)
	if err != nil {
		return nil, errors.New("无效的 ticket - " + err.Error())
	}
	if !token.Valid {
		return nil, errTicketUnknown
	}

	th.mutex.Lock()
	defer th.mutex.Unlock()

	ticket := th.tickets[ticketString]
	if ticket == nil {
		return nil, errTicketUnknown
	}
	if ticket.Used {
		return nil, errTicketUsed
	}
	ticket.Used = true
	if time.Now().After(ticket.ExpiresAt) {
		return nil, errTicketExpired
	}
	copied := *ticket
	return &copied, nil
}

func (th *tickets) get(ticketString string) (*Ticket, bool) {
	th.mutex.Lock()
	defer th.mutex.Unlock()
	ticket, ok := th.tickets[ticketString]
	if !ok {
		return nil, false
	}
	copied := *ticket
	return &copied, true
}

func (th *tickets) byUser(username string) []Ticket {
	th.mutex.Lock()
	defer th.mutex.Unlock()
	var list []Ticket
	for _, ticket := range th.tickets {
		if ticket.Username == username {
			list = append(list, *ticket)
		}
	}
	return list
}

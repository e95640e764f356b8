package neo

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"flight-oracles/oracle"
	"flight-oracles/pool"
	"flight-oracles/queues"

	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/gas"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/unwrap"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"github.com/rs/zerolog/log"
)

const (
	methodGetIndexes = "getMyIndexes"
	methodSubmit     = "submitOracleResponse"
	registerData     = "registerOracle"
)

var (
	ErrUnknownOracle = errors.New("no signing account for oracle")
	ErrFault         = errors.New("transaction faulted")
)

// signer is the part of *actor.Actor the contract binding uses.
type signer interface {
	Call(contract util.Uint160, operation string, params ...any) (*result.Invoke, error)
	SendCall(contract util.Uint160, method string, params ...any) (util.Uint256, uint32, error)
	WaitAny(ctx context.Context, vub uint32, hashes ...util.Uint256) (*state.AppExecResult, error)
	Sender() util.Uint160
}

// Contract binds the flight-status contract for a set of oracle accounts,
// one actor per account.
type Contract struct {
	hash    util.Uint160
	signers map[string]signer
	order   []string
	client  *rpcclient.Client
}

// Dial connects to the node's RPC endpoint and prepares an actor for every
// account. ctx bounds the client's whole lifetime: pending transaction waits
// end when it does, so it must outlive the shutdown drain.
func Dial(ctx context.Context, endpoint string, hash util.Uint160, accounts []*wallet.Account) (*Contract, error) {
	cl, err := rpcclient.New(ctx, endpoint, rpcclient.Options{})
	if err != nil {
		return nil, fmt.Errorf("create RPC client: %w", err)
	}
	if err := cl.Init(); err != nil {
		cl.Close()
		return nil, fmt.Errorf("init RPC client: %w", err)
	}
	signers := make(map[string]signer, len(accounts))
	order := make([]string, 0, len(accounts))
	for _, acc := range accounts {
		act, err := actor.NewSimple(cl, acc)
		if err != nil {
			cl.Close()
			return nil, fmt.Errorf("create actor for %s: %w", acc.Address, err)
		}
		signers[acc.Address] = act
		order = append(order, acc.Address)
	}
	log.Info().Str("endpoint", endpoint).Str("contract", hash.StringLE()).Int("accounts", len(order)).Msg("ledger: contract client ready")
	c := newContract(hash, signers, order)
	c.client = cl
	return c, nil
}

func newContract(hash util.Uint160, signers map[string]signer, order []string) *Contract {
	return &Contract{hash: hash, signers: signers, order: order}
}

// Accounts lists the oracle addresses in wallet order.
func (c *Contract) Accounts() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Register stakes GAS with the contract; the transfer's data routes it to
// oracle registration.
func (c *Contract) Register(ctx context.Context, oracle string, stake *big.Int) error {
	s, err := c.signer(oracle)
	if err != nil {
		return err
	}
	return c.send(ctx, s, gas.Hash, "transfer", s.Sender(), c.hash, stake, registerData)
}

type invocation struct {
	items []stackitem.Item
	err   error
}

// Indexes queries the index assignment for a registered oracle. The
// test-invocation itself is not cancellable, so ctx bounds the wait for it.
func (c *Contract) Indexes(ctx context.Context, oracle string) (pool.IndexSet, error) {
	s, err := c.signer(oracle)
	if err != nil {
		return pool.IndexSet{}, err
	}
	done := make(chan invocation, 1)
	go func() {
		items, err := unwrap.Array(s.Call(c.hash, methodGetIndexes, s.Sender()))
		done <- invocation{items: items, err: err}
	}()
	select {
	case <-ctx.Done():
		return pool.IndexSet{}, fmt.Errorf("%s: %w", methodGetIndexes, ctx.Err())
	case res := <-done:
		if res.err != nil {
			return pool.IndexSet{}, fmt.Errorf("%s: %w", methodGetIndexes, res.err)
		}
		return decodeIndexes(res.items)
	}
}

// SubmitResponse sends the oracle's status for req and waits for the
// transaction to be accepted or ctx to end.
func (c *Contract) SubmitResponse(ctx context.Context, oracleAddr string, req *queues.StatusRequest, code oracle.StatusCode) error {
	s, err := c.signer(oracleAddr)
	if err != nil {
		return err
	}
	airline, err := address.StringToUint160(req.Airline)
	if err != nil {
		return fmt.Errorf("airline %q: %w", req.Airline, err)
	}
	return c.send(ctx, s, c.hash, methodSubmit,
		int64(req.Index), airline, req.Flight, new(big.Int).SetUint64(req.Timestamp), int64(code))
}

// Close releases the RPC client.
func (c *Contract) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

func (c *Contract) signer(oracle string) (signer, error) {
	s, ok := c.signers[oracle]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOracle, oracle)
	}
	return s, nil
}

func (c *Contract) send(ctx context.Context, s signer, contract util.Uint160, method string, params ...any) error {
	h, vub, err := s.SendCall(contract, method, params...)
	if err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}
	aer, err := s.WaitAny(ctx, vub, h)
	if err != nil {
		return fmt.Errorf("await %s tx %s: %w", method, h.StringLE(), err)
	}
	if aer.VMState != vmstate.Halt {
		return fmt.Errorf("%w: %s tx %s: %s", ErrFault, method, h.StringLE(), aer.FaultException)
	}
	log.Debug().Str("method", method).Str("tx", h.StringLE()).Msg("ledger: transaction accepted")
	return nil
}

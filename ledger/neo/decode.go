package neo

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"flight-oracles/pool"
	"flight-oracles/queues"

	"github.com/google/uuid"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
)

// decodeRequest converts an OracleRequest notification
// [index, airline Hash160, flight, timestamp] into a StatusRequest.
func decodeRequest(ev *state.ContainedNotificationEvent) (*queues.StatusRequest, error) {
	if ev == nil || ev.Item == nil {
		return nil, errors.New("empty notification")
	}
	items, ok := ev.Item.Value().([]stackitem.Item)
	if !ok || len(items) != 4 {
		return nil, fmt.Errorf("unexpected %s payload: want 4 items", ev.Name)
	}
	index, err := smallUint(items[0], "index")
	if err != nil {
		return nil, err
	}
	airB, err := items[1].TryBytes()
	if err != nil {
		return nil, fmt.Errorf("airline: %w", err)
	}
	airline, err := util.Uint160DecodeBytesBE(airB)
	if err != nil {
		return nil, fmt.Errorf("airline: %w", err)
	}
	flight, err := items[2].TryBytes()
	if err != nil {
		return nil, fmt.Errorf("flight: %w", err)
	}
	ts, err := items[3].TryInteger()
	if err != nil {
		return nil, fmt.Errorf("timestamp: %w", err)
	}
	if ts.Sign() < 0 || !ts.IsUint64() {
		return nil, fmt.Errorf("timestamp out of range: %s", ts)
	}
	req := &queues.StatusRequest{
		ID:        uuid.NewString(),
		Index:     index,
		Airline:   address.Uint160ToString(airline),
		Flight:    string(flight),
		Timestamp: ts.Uint64(),
		Received:  time.Now(),
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

func decodeIndexes(items []stackitem.Item) (pool.IndexSet, error) {
	var set pool.IndexSet
	if len(items) != len(set) {
		return set, fmt.Errorf("want %d indexes, got %d", len(set), len(items))
	}
	for i, it := range items {
		v, err := smallUint(it, "index")
		if err != nil {
			return pool.IndexSet{}, err
		}
		set[i] = v
	}
	return set, nil
}

var maxUint8 = big.NewInt(255)

func smallUint(it stackitem.Item, field string) (uint8, error) {
	v, err := it.TryInteger()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if v.Sign() < 0 || v.Cmp(maxUint8) > 0 {
		return 0, fmt.Errorf("%s out of range: %s", field, v)
	}
	return uint8(v.Uint64()), nil
}

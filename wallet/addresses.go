package wallet

import (
	"encoding/hex"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/mypivxwallet/wallet_engine/config"
	"github.com/mypivxwallet/wallet_engine/script"
)

const (
	ChainReceiving uint32 = 0
	ChainChange    uint32 = 1
	chainCount            = 2

	pkhCacheSize = 4096
)

// AddressManager keeps the gap limited watch set of an account.
type AddressManager struct {
	mu sync.Mutex

	params  *config.ChainParams
	key     MasterKey
	account uint32

	loaded      [chainCount]uint32
	highestUsed [chainCount]uint32
	current     [chainCount]uint32
	// address -> derivation path
	own map[string]string
	// version byte + pkh -> address
	known *lru.Cache
}

func NewAddressManager(params *config.ChainParams) *AddressManager {
	known, _ := lru.New(pkhCacheSize)
	return &AddressManager{
		params: params,
		own:    make(map[string]string),
		known:  known,
	}
}

// Reset drops all derived state and loads the first window of both chains for key.
func (a *AddressManager) Reset(key MasterKey, account uint32) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.key = key
	a.account = account
	a.loaded = [chainCount]uint32{}
	a.highestUsed = [chainCount]uint32{}
	a.current = [chainCount]uint32{}
	a.own = make(map[string]string)
	if key == nil {
		return nil
	}
	for chain := uint32(0); chain < chainCount; chain++ {
		if err := a.loadAddresses(chain); err != nil {
			return err
		}
	}
	return nil
}

// setKey swaps in a key of the same account without touching the derived state.
func (a *AddressManager) setKey(key MasterKey) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.key = key
}

// NewAddress returns the next unused address of chain. The index handed out never
// exceeds highestUsed + GapLimit, so a gap limited rescan always finds it: past the gap
// it falls back to highestUsed and the window is cycled again.
func (a *AddressManager) NewAddress(chain uint32) (address, path string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.key == nil {
		return "", "", ErrNoMasterKey
	}
	if chain >= chainCount {
		return "", "", fmt.Errorf("unknown chain %d", chain)
	}

	last := a.highestUsed[chain]
	next := max(a.current[chain], last) + 1
	if next-last > config.GapLimit {
		next = last
	}
	a.current[chain] = next

	path = a.key.DerivationPath(a.account, chain, next)
	address, err = a.key.Address(path)
	if err != nil {
		return "", "", err
	}
	return address, path, nil
}

// CurrentAddress is the receiving address at the current index.
func (a *AddressManager) CurrentAddress() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.key == nil {
		return "", ErrNoMasterKey
	}
	return a.key.Address(a.key.DerivationPath(a.account, ChainReceiving, a.current[ChainReceiving]))
}

// UpdateHighestUsedIndex records that the owner of outScript was seen on chain and
// extends the watch set when the used index comes within a gap of the loaded one.
func (a *AddressManager) UpdateHighestUsedIndex(outScript []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	path, ok := a.getPath(outScript)
	if !ok {
		return nil
	}
	chain, index, ok := chainIndex(path)
	if !ok || chain >= chainCount {
		return nil
	}
	a.highestUsed[chain] = max(a.highestUsed[chain], index)
	if a.highestUsed[chain]+config.GapLimit >= a.loaded[chain] {
		return a.loadAddresses(chain)
	}
	return nil
}

func (a *AddressManager) LoadAddresses(chain uint32) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loadAddresses(chain)
}

// must hold a.mu
func (a *AddressManager) loadAddresses(chain uint32) error {
	if a.key == nil {
		return ErrNoMasterKey
	}
	if !a.key.IsHD() {
		addr, err := a.key.Address(LegacyPath)
		if err != nil {
			return err
		}
		a.own[addr] = LegacyPath
		return nil
	}
	start := a.loaded[chain]
	end := start + config.GapLimit
	for i := start; i <= end; i++ {
		path := a.key.DerivationPath(a.account, chain, i)
		addr, err := a.key.Address(path)
		if err != nil {
			return fmt.Errorf("derive %s: %w", path, err)
		}
		a.own[addr] = path
	}
	a.loaded[chain] = end
	return nil
}

func (a *AddressManager) IsOwnAddress(address string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	path, ok := a.own[address]
	return path, ok
}

// GetPath resolves the spending key hash of a P2PKH or P2CS script to its derivation path.
func (a *AddressManager) GetPath(s []byte) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.getPath(s)
}

func (a *AddressManager) getPath(s []byte) (string, bool) {
	pkh := script.SpendingKeyHash(s)
	if pkh == nil {
		return "", false
	}
	path, ok := a.own[a.addressFromHash(pkh, a.params.PubKeyHashAddrID)]
	return path, ok
}

// AddressesFromScript lists the addresses a script pays to. A P2CS yields the staker
// (staking version) followed by the owner.
func (a *AddressManager) AddressesFromScript(s []byte) (script.Type, []string) {
	typ, hashes := script.Classify(s)
	switch typ {
	case script.P2PKH:
		return typ, []string{a.addressFromHash(hashes[0], a.params.PubKeyHashAddrID)}
	case script.P2CS:
		return typ, []string{
			a.addressFromHash(hashes[0], a.params.StakingAddrID),
			a.addressFromHash(hashes[1], a.params.PubKeyHashAddrID),
		}
	default:
		return typ, nil
	}
}

func (a *AddressManager) addressFromHash(pkh []byte, version byte) string {
	key := string(version) + hex.EncodeToString(pkh)
	if v, ok := a.known.Get(key); ok {
		return v.(string)
	}
	addr := script.EncodeAddress(pkh, version)
	a.known.Add(key, addr)
	return addr
}

// Indexes returns loaded, highest used and current index of chain.
func (a *AddressManager) Indexes(chain uint32) (loaded, highestUsed, current uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loaded[chain], a.highestUsed[chain], a.current[chain]
}

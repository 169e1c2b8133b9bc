package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mypivxwallet/wallet_engine/api/respond"
	"github.com/mypivxwallet/wallet_engine/blockchain"
	"github.com/mypivxwallet/wallet_engine/logger"
	"github.com/mypivxwallet/wallet_engine/mempool"
	"github.com/mypivxwallet/wallet_engine/metrics"
	"github.com/mypivxwallet/wallet_engine/shield"
	"github.com/mypivxwallet/wallet_engine/storage"
	"github.com/mypivxwallet/wallet_engine/syslogs"
	"github.com/mypivxwallet/wallet_engine/transaction"
	"github.com/mypivxwallet/wallet_engine/wallet"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	Router  *gin.Engine
	wallet  *wallet.Wallet
	source  blockchain.Source
	store   storage.AccountStore
	shield  *shield.Engine
	journal *syslogs.Journal
	logger  logger.Logger
}

type Option func(*Server)

// WithShield exposes the shield engine's state on /shield/status.
func WithShield(e *shield.Engine) Option {
	return func(s *Server) { s.shield = e }
}

func WithJournal(j *syslogs.Journal) Option {
	return func(s *Server) { s.journal = j }
}

func WithLogger(l logger.Logger) Option {
	return func(s *Server) { s.logger = l }
}

func NewServer(w *wallet.Wallet, source blockchain.Source, store storage.AccountStore, opts ...Option) *Server {
	metrics.Init()
	gin.SetMode(gin.ReleaseMode)
	gin.DefaultWriter = io.Discard
	server := &Server{
		Router: gin.New(),
		wallet: w,
		source: source,
		store:  store,
		logger: logger.NewNop(),
	}
	for _, opt := range opts {
		opt(server)
	}
	server.Router.Use(gin.Recovery())
	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.setupLogRoutes()
	s.Router.GET("/balance", s.getBalance)
	s.Router.GET("/utxos", s.getUTXOs)
	s.Router.GET("/history", s.getHistory)
	s.Router.GET("/address/new", s.newAddress)
	s.Router.POST("/tx/send", s.sendTransaction)
	s.Router.GET("/shield/status", s.getShieldStatus)
	s.Router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func since(start int64) int64 {
	return time.Now().UnixMilli() - start
}

func (s *Server) getBalance(c *gin.Context) {
	startTime := time.Now().UnixMilli()
	resp := respond.BalanceResponse{
		Balance:     s.wallet.Balance(),
		ColdBalance: s.wallet.ColdBalance(),
	}
	if s.shield != nil {
		resp.ShieldBalance = s.shield.State().Balance()
	}
	c.JSON(http.StatusOK, respond.RespSuccess(resp, since(startTime)))
}

var utxoFilters = map[string]mempool.OutpointState{
	"p2pkh": mempool.P2PKH,
	"p2cs":  mempool.P2CS,
}

func (s *Server) getUTXOs(c *gin.Context) {
	startTime := time.Now().UnixMilli()
	typ := c.DefaultQuery("type", "p2pkh")
	filter, ok := utxoFilters[typ]
	if !ok {
		c.JSON(http.StatusBadRequest, respond.RespErr(fmt.Errorf("unsupported utxo type: %s, supported types: p2pkh, p2cs", typ), since(startTime), http.StatusBadRequest))
		return
	}
	utxos := s.wallet.Mempool().GetUTXOs(mempool.UTXOQuery{
		Filter:        filter,
		IncludeLocked: c.Query("locked") == "true",
	})
	c.JSON(http.StatusOK, respond.RespSuccess(respond.UTXOsResponse{
		Type:  typ,
		UTXOs: utxos,
		Count: len(utxos),
	}, since(startTime)))
}

func (s *Server) getHistory(c *gin.Context) {
	startTime := time.Now().UnixMilli()
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 {
		limit = 10
	}

	txs, err := blockchain.SortTransactions(s.wallet.GetTransactions())
	if err != nil {
		c.JSON(http.StatusInternalServerError, respond.RespErr(err, since(startTime), http.StatusInternalServerError))
		return
	}
	history := s.wallet.History(txs)
	total := len(history)
	from := min((page-1)*limit, total)
	to := min(from+limit, total)

	c.JSON(http.StatusOK, respond.RespSuccess(respond.HistoryResponse{
		List:  history[from:to],
		Count: to - from,
		Total: total,
	}, since(startTime)))
}

func (s *Server) newAddress(c *gin.Context) {
	startTime := time.Now().UnixMilli()
	var chain uint32 = wallet.ChainReceiving
	if c.Query("change") == "true" {
		chain = wallet.ChainChange
	}
	address, path, err := s.wallet.NewAddress(chain)
	if err != nil {
		c.JSON(http.StatusInternalServerError, respond.RespErr(err, since(startTime), http.StatusInternalServerError))
		return
	}
	c.JSON(http.StatusOK, respond.RespSuccess(respond.AddressResponse{Address: address, Path: path}, since(startTime)))
}

// sendTransaction builds, signs and broadcasts a payment, then inserts it into the ledger
// so its inputs are not selected again before the next scan.
func (s *Server) sendTransaction(c *gin.Context) {
	startTime := time.Now().UnixMilli()
	var req respond.SendTxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, respond.RespErr(fmt.Errorf("request parameter error: %w", err), since(startTime), http.StatusBadRequest))
		return
	}
	opts := wallet.TxOptions{
		IsDelegation:            req.Options.IsDelegation,
		UseDelegatedInputs:      req.Options.UseDelegatedInputs,
		DelegateChange:          req.Options.DelegateChange,
		ChangeDelegationAddress: req.Options.ChangeDelegationAddress,
		IsProposal:              req.Options.IsProposal,
	}
	address := req.Address
	if address == "" && opts.IsDelegation && s.store != nil {
		cold, err := s.wallet.ColdStakingAddress(s.store)
		if err != nil {
			c.JSON(http.StatusInternalServerError, respond.RespErr(err, since(startTime), http.StatusInternalServerError))
			return
		}
		address = cold
	}
	if address == "" {
		c.JSON(http.StatusBadRequest, respond.RespErr(errors.New("address parameter is required"), since(startTime), http.StatusBadRequest))
		return
	}

	tx, err := s.wallet.CreateTransaction(address, req.Value, opts)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, wallet.ErrInsufficientFunds) || errors.Is(err, wallet.ErrMissingChangeDelegationAddress) {
			code = http.StatusBadRequest
		}
		c.JSON(code, respond.RespErr(err, since(startTime), code))
		return
	}
	signed, err := s.wallet.Sign(c.Request.Context(), tx)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, transaction.ErrKeyUnavailable) {
			code = http.StatusForbidden
		}
		c.JSON(code, respond.RespErr(err, since(startTime), code))
		return
	}

	fee, err := txFee(s.wallet.Mempool().GetDebit(signed), signed.Vout)
	if err != nil {
		c.JSON(http.StatusInternalServerError, respond.RespErr(err, since(startTime), http.StatusInternalServerError))
		return
	}

	txid, err := s.source.SendTransaction(c.Request.Context(), signed.Hex())
	if err != nil {
		s.logBroadcastError(err)
		code := http.StatusBadGateway
		if errors.Is(err, blockchain.ErrBroadcastRejected) {
			code = http.StatusUnprocessableEntity
		}
		c.JSON(code, respond.RespErr(err, since(startTime), code))
		return
	}
	s.wallet.AddTransaction(signed)
	metrics.TransactionsSent.Inc()
	s.logger.Infof("broadcast %s, fee %d", txid, fee)

	c.JSON(http.StatusOK, respond.RespSuccess(respond.SendTxResponse{
		TxID: txid,
		Fee:  fee,
		Hex:  signed.Hex(),
	}, since(startTime)))
}

var errNegativeFee = errors.New("outputs exceed inputs")

// txFee is debit minus the value of outs, refusing a transaction that spends more than it owns.
func txFee(debit uint64, outs []transaction.TxOut) (uint64, error) {
	var valueOut uint64
	for _, out := range outs {
		valueOut += out.Value
	}
	if valueOut > debit {
		return 0, fmt.Errorf("%w: in %d, out %d", errNegativeFee, debit, valueOut)
	}
	return debit - valueOut, nil
}

func (s *Server) logBroadcastError(err error) {
	s.logger.Warnf("broadcast failed: %v", err)
	if s.journal == nil {
		return
	}
	if jerr := s.journal.InsertErrLog(syslogs.ErrLog{
		Kind:         syslogs.KindBroadcast,
		Timestamp:    time.Now().Unix(),
		ErrorMessage: err.Error(),
	}); jerr != nil {
		s.logger.Warnf("failed to write error log: %v", jerr)
	}
}

func (s *Server) getShieldStatus(c *gin.Context) {
	startTime := time.Now().UnixMilli()
	if s.shield == nil {
		c.JSON(http.StatusOK, respond.RespSuccess(respond.ShieldStatusResponse{}, since(startTime)))
		return
	}
	state := s.shield.State()
	c.JSON(http.StatusOK, respond.RespSuccess(respond.ShieldStatusResponse{
		Enabled:         true,
		LastSyncedBlock: state.LastSyncedBlock(),
		Balance:         state.Balance(),
	}, since(startTime)))
}

// Package blockchain wraps the EVM chain access used by the uploader.
//
// EVMClient answers two questions for the rest of the module: which storage
// deployment the configured chain belongs to (Cluster), and how to move native
// coin to a storage node deposit address (Transfer).
//
// Transfers are signed legacy transactions with a fixed 21000 gas limit. They
// are submitted once and then awaited with WaitForTransaction, which polls the
// receipt with exponential backoff:
//
//	evm, err := blockchain.InitEvm(cfg.RPCAddr, cfg.PrivateKey, cfg.Timeouts)
//	if err != nil {
//		return err
//	}
//	defer evm.Close()
//
//	txID, err := evm.Transfer(ctx, depositAddr, amount)
//
// Amounts are always wei; WeiToEther and EtherToWei convert for display and
// user input using github.com/shopspring/decimal.
package blockchain

// Package storage provides the IPFS upload backend and gateway link helpers.
//
// Bundlr is the default destination for assets; IPFS is the alternative
// selected with upload_method: ipfs. IPFSClient talks to a Kubo node through
// its HTTP API, adds every file with pinning enabled and validates the CID the
// node answers with:
//
//	client, err := storage.NewIPFSClient("http://127.0.0.1:5001", "https://ipfs.io/ipfs/", time.Minute)
//	if err != nil {
//		return err
//	}
//	id, err := client.Upload(ctx, data, tags)
//	link := storage.Link(client.Gateway(), id)
package storage

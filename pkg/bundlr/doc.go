// Package bundlr is a client for Bundlr nodes, the pay-per-byte gateway used
// to store asset files on Arweave.
//
// The client covers the endpoints the upload pipeline needs:
//
//	GET  {node}/info                               deposit addresses
//	GET  {node}/account/balance/{currency}/?address=  uploader balance
//	GET  {node}/price/{currency}/{bytes}           storage price
//	POST {node}/account/balance/{currency}         deposit notification
//	POST {node}/tx/{currency}                      signed data item
//
// Files are submitted as ANS-104 data items signed with the uploader's
// secp256k1 key (signature type 3). The id returned by the node, prefixed
// with an Arweave gateway, is the durable link of the file.
package bundlr

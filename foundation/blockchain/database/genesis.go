package database

// genesisBlock is the fixed first block of every valid chain. Its hash is the
// digest of its own fields.
var genesisBlock = Block{
	Index:        0,
	PreviousHash: "",
	Timestamp:    1465154705,
	Data:         "my genesis block!!",
	Difficulty:   0,
	Nonce:        0,
	Hash:         "91a73664bc84c0baa1fc75ea6e4aa6d1d20c5df664c724e3159aefc2e1186627",
}

// Genesis returns the genesis block.
func Genesis() Block {
	return genesisBlock
}

// IsGenesis reports whether the block is field for field equal to the
// genesis block.
func IsGenesis(block Block) bool {
	return block == genesisBlock
}

package ledger

// LedgerAbi is the subset of the rewarder contract used by the reconciler.
const LedgerAbi = `[
	{"type":"function","name":"totalRegistered","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"registeredIdentityAt","stateMutability":"view","inputs":[{"name":"index","type":"uint256"}],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"recordedCount","stateMutability":"view","inputs":[{"name":"identity","type":"string"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"walletOf","stateMutability":"view","inputs":[{"name":"identity","type":"string"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"totalUnclaimed","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"rewardToken","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"setCount","stateMutability":"nonpayable","inputs":[{"name":"identity","type":"string"},{"name":"count","type":"uint256"}],"outputs":[]}
]`

// Erc20Abi covers the reward token calls used for balance reads and refills.
const Erc20Abi = `[
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

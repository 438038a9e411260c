package types

// Strategy selects how members are ranked when a caller's turn comes up.
type Strategy string

const (
	StrategyRingAll          Strategy = "ringall"
	StrategyLinear           Strategy = "linear"
	StrategyLeastRecent      Strategy = "leastrecent"
	StrategyFewestCalls      Strategy = "fewestcalls"
	StrategyRandom           Strategy = "random"
	StrategyRoundRobinMemory Strategy = "rrmemory"
	StrategyRoundRobinOrder  Strategy = "rrordered"
	StrategyWeightedRandom   Strategy = "wrandom"
)

// AllStrategies lists every supported ring strategy.
var AllStrategies = []Strategy{
	StrategyRingAll,
	StrategyLinear,
	StrategyLeastRecent,
	StrategyFewestCalls,
	StrategyRandom,
	StrategyRoundRobinMemory,
	StrategyRoundRobinOrder,
	StrategyWeightedRandom,
}

// ParseStrategy returns the strategy for a config name, or false if the
// name is not one of the supported strategies.
func ParseStrategy(name string) (Strategy, bool) {
	for _, s := range AllStrategies {
		if string(s) == name {
			return s, true
		}
	}
	return "", false
}

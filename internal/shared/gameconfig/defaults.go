package gameconfig

import (
	"time"

	"Conquest/internal/game/entity"
)

// Default 返回内置数值；配置文件的 game 段只需写要覆盖的部分。
func Default() Balance {
	return Balance{
		Economy: Economy{
			StartingResources:      entity.Resources{Gold: 2000, Food: 1000, Wood: 800, Stone: 600, Iron: 400, Mana: 100},
			BaseStorage:            10000,
			HappinessBaseline:      85,
			HappinessRecoveryEvery: 10 * time.Minute,
			MaxConstructionQueue:   1,
			TrainingQueueLimit:     0,
			MaxTrainingBatch:       10000,
			MaxBuildingLevel:       30,
			CancelRefundRate:       0.5,
			ExchangeRates: map[entity.ResourceKind]float64{
				entity.Food:  2,
				entity.Wood:  1.5,
				entity.Stone: 1,
				entity.Iron:  0.5,
			},
		},
		Buildings: map[entity.BuildingType]BuildingSpec{
			entity.TownHall: {
				BaseCost:        entity.Resources{Gold: 5000, Wood: 3000, Stone: 2000, Iron: 1000},
				CostGrowth:      1.5,
				BaseDuration:    2 * time.Hour,
				DurationGrowth:  1.4,
				Production:      entity.Resources{Gold: 5, Mana: 1},
				StoragePerLevel: 5000,
			},
			entity.Houses: {
				BaseCost:           entity.Resources{Gold: 800, Wood: 1200, Stone: 400},
				CostGrowth:         1.4,
				BaseDuration:       20 * time.Minute,
				DurationGrowth:     1.35,
				StoragePerLevel:    2500,
				PopulationPerLevel: 500,
			},
			entity.Farm: {
				BaseCost:       entity.Resources{Gold: 400, Wood: 600, Stone: 200},
				CostGrowth:     1.4,
				BaseDuration:   10 * time.Minute,
				DurationGrowth: 1.3,
				Production:     entity.Resources{Food: 5},
			},
			entity.Mine: {
				BaseCost:       entity.Resources{Gold: 600, Wood: 800, Stone: 300},
				CostGrowth:     1.4,
				BaseDuration:   15 * time.Minute,
				DurationGrowth: 1.3,
				Production:     entity.Resources{Stone: 4, Iron: 2},
			},
			entity.Factory: {
				BaseCost:       entity.Resources{Gold: 700, Wood: 500, Stone: 500, Iron: 200},
				CostGrowth:     1.45,
				BaseDuration:   20 * time.Minute,
				DurationGrowth: 1.3,
				Production:     entity.Resources{Wood: 5},
			},
			entity.TrainingGround: {
				BaseCost:              entity.Resources{Gold: 1000, Wood: 800, Stone: 600, Iron: 400},
				CostGrowth:            1.5,
				BaseDuration:          30 * time.Minute,
				DurationGrowth:        1.35,
				TrainingSpeedPerLevel: 0.05,
			},
			entity.Walls: {
				BaseCost:        entity.Resources{Gold: 600, Wood: 400, Stone: 1200, Iron: 300},
				CostGrowth:      1.45,
				BaseDuration:    30 * time.Minute,
				DurationGrowth:  1.35,
				DefensePerLevel: 100,
			},
			entity.Gate: {
				BaseCost:        entity.Resources{Gold: 500, Wood: 800, Stone: 600, Iron: 400},
				CostGrowth:      1.45,
				BaseDuration:    25 * time.Minute,
				DurationGrowth:  1.35,
				DefensePerLevel: 50,
			},
		},
		Units: map[entity.UnitType]UnitSpec{
			entity.Infantry: {Cost: entity.Resources{Gold: 50, Food: 20, Iron: 10}, TrainTime: 30 * time.Second, Attack: 20, Defense: 15, Accuracy: 0.80, Carry: 10, Experience: 1},
			entity.Archers:  {Cost: entity.Resources{Gold: 60, Food: 25, Wood: 20}, TrainTime: 36 * time.Second, Attack: 18, Defense: 10, Accuracy: 0.85, Carry: 5, Experience: 1},
			entity.Cavalry:  {Cost: entity.Resources{Gold: 100, Food: 40, Iron: 30}, TrainTime: time.Minute, Attack: 25, Defense: 18, Accuracy: 0.75, Carry: 20, Experience: 2},
			entity.Siege:    {Cost: entity.Resources{Gold: 300, Wood: 150, Stone: 100, Iron: 80}, TrainTime: 3 * time.Minute, Attack: 60, Defense: 5, Accuracy: 0.70, Carry: 0, Experience: 5},
		},
		Combat: Combat{
			MinAttackInterval:     5 * time.Minute,
			CasualtyRate:          0.6,
			LoserPenalty:          1.25,
			PlunderRate:           0.15,
			HappinessLoss:         10,
			ResearchBonusPerLevel: 0.05,
			ExperiencePerKill:     1,
		},
		Rewards: Rewards{
			CollectBonus:     entity.Resources{Gold: 200, Food: 350, Wood: 275, Stone: 175, Iron: 100},
			CollectCooldown:  time.Hour,
			Daily:            entity.Resources{Gold: 750, Food: 1150, Wood: 900, Stone: 600, Iron: 350, Mana: 100},
			DailyStreakBonus: 0.1,
			DailyStreakCap:   7,
			Timezone:         "UTC",
		},
		World: World{
			Width:          500,
			Height:         500,
			CityPopulation: 2000,
			CityHappiness:  85,
			CityDefense:    200,
			StartingArmy:   entity.Army{Infantry: 100, Archers: 50, Cavalry: 30, Siege: 5},
		},
		Progression: Progression{
			ExperienceBase:         500,
			ConstructionExperience: 50,
			MaxLevel:               50,
			Ranks: []Rank{
				{MinLevel: 1, Name: "Beginner"},
				{MinLevel: 3, Name: "Squire"},
				{MinLevel: 6, Name: "Knight"},
				{MinLevel: 10, Name: "Lord"},
				{MinLevel: 15, Name: "Duke"},
				{MinLevel: 20, Name: "King"},
			},
		},
	}
}

package scenario

// GetCaminataNormal retorna el escenario "Caminata Normal"
func GetCaminataNormal() *Scenario {
	return &Scenario{
		Name:        "Caminata Normal",
		Description: "Reposo, caminata, pausa de pie y regreso al reposo",
		Duration:    70,
		Steps: []ScenarioStep{
			{Time: 0, Action: ActionLog, Value: "Inicio: usuario sentado"},
			{Time: 0, Action: ActionSetMotion, Value: "still"},

			{Time: 5, Action: ActionLog, Value: "Se pone de pie"},
			{Time: 5, Action: ActionSetMotion, Value: "standing"},

			{Time: 10, Action: ActionSetMotion, Value: "walking"},
			{Time: 12, Action: ActionWaitActivity, Value: "WALKING"},

			{Time: 35, Action: ActionLog, Value: "Espera en un semáforo"},
			{Time: 35, Action: ActionSetMotion, Value: "standing"},

			{Time: 45, Action: ActionSetMotion, Value: "walking"},
			{Time: 60, Action: ActionSetMotion, Value: "still"},
			{Time: 65, Action: ActionLog, Value: "Escenario completado"},
		},
	}
}

// GetCarreraConCaida retorna el escenario "Carrera con Caída"
func GetCarreraConCaida() *Scenario {
	return &Scenario{
		Name:        "Carrera con Caída",
		Description: "Carrera sostenida que termina en una caída y quietud total",
		Duration:    60,
		Steps: []ScenarioStep{
			{Time: 0, Action: ActionLog, Value: "Calentamiento caminando"},
			{Time: 0, Action: ActionSetMotion, Value: "walking"},

			{Time: 8, Action: ActionLog, Value: "Empieza a correr"},
			{Time: 8, Action: ActionSetMotion, Value: "running"},

			// ~15s de carrera antes del golpe
			{Time: 24, Action: ActionLog, Value: "Caída"},
			{Time: 24, Action: ActionImpact},
			{Time: 24, Action: ActionSetMotion, Value: "still"},
			{Time: 25, Action: ActionWaitAnomaly, Value: 20},

			{Time: 50, Action: ActionLog, Value: "Escenario completado"},
		},
	}
}

// GetJornadaSedentaria retorna el escenario "Jornada Sedentaria"
func GetJornadaSedentaria() *Scenario {
	return &Scenario{
		Name:        "Jornada Sedentaria",
		Description: "Alterna reposo y de pie; cambia la sensibilidad a mitad",
		Duration:    80,
		Steps: []ScenarioStep{
			{Time: 0, Action: ActionSetMotion, Value: "still"},
			{Time: 15, Action: ActionSetMotion, Value: "standing"},
			{Time: 25, Action: ActionSetMotion, Value: "still"},

			{Time: 40, Action: ActionLog, Value: "Sensibilidad baja: más difícil salir de reposo"},
			{Time: 40, Action: ActionSetSensitivity, Value: "low"},
			{Time: 45, Action: ActionSetMotion, Value: "standing"},

			{Time: 60, Action: ActionSetSensitivity, Value: "medium"},
			{Time: 70, Action: ActionSetMotion, Value: "still"},
		},
	}
}

// GetParpadeoReposo retorna un escenario que ejercita la histéresis
func GetParpadeoReposo() *Scenario {
	steps := []ScenarioStep{
		{Time: 0, Action: ActionLog, Value: "Movimientos breves alrededor del umbral de reposo"},
		{Time: 0, Action: ActionSetMotion, Value: "still"},
	}
	for i := 0; i < 10; i++ {
		t := 5 + float64(i)*2
		steps = append(steps,
			ScenarioStep{Time: t, Action: ActionSetMotion, Value: "standing"},
			ScenarioStep{Time: t + 0.3, Action: ActionSetMotion, Value: "still"},
		)
	}
	steps = append(steps, ScenarioStep{Time: 30, Action: ActionLog, Value: "Escenario completado"})

	return &Scenario{
		Name:        "Parpadeo en Reposo",
		Description: "Gestos cortos que no deberían sacar al usuario de IDLE",
		Duration:    35,
		Steps:       steps,
	}
}

// GetAllScenarios retorna todos los escenarios disponibles
func GetAllScenarios() map[string]*Scenario {
	return map[string]*Scenario{
		"caminata_normal":    GetCaminataNormal(),
		"carrera_con_caida":  GetCarreraConCaida(),
		"jornada_sedentaria": GetJornadaSedentaria(),
		"parpadeo_reposo":    GetParpadeoReposo(),
	}
}

// GetScenarioByName retorna un escenario por nombre
func GetScenarioByName(name string) *Scenario {
	scenarios := GetAllScenarios()
	return scenarios[name]
}

// GetScenarioNames retorna los nombres de todos los escenarios
func GetScenarioNames() []string {
	return []string{
		"caminata_normal",
		"carrera_con_caida",
		"jornada_sedentaria",
		"parpadeo_reposo",
	}
}

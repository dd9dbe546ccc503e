package playbook

// Built-in playbooks shipped with the application. They are read-only: the
// store refuses to overwrite or delete a playbook whose id collides with one
// of these.

func boolPtr(b bool) *bool { return &b }

// ScenarioATCConnect walks a PBX hookup across the ticketing system, the
// accounting admin, the support script page and the provisioning portals.
var ScenarioATCConnect = Playbook{
	ID:      "builtin_atc_connect",
	Name:    "Connect PBX",
	BuiltIn: true,
	Steps: []Step{
		{
			ID:          "parse_otrs",
			Description: "Extract ticket fields from OTRS",
			System:      "OTRS",
			Action:      ActionParse,
			Params: StepParams{
				Message:    "PARSE_OTRS",
				URLPattern: "otrs.tlpn",
			},
			WaitForConfirm: boolPtr(false),
		},
		{
			ID:          "open_accounting",
			Description: "Open Accounting by client code",
			System:      "Accounting",
			Action:      ActionNavigate,
			Params: StepParams{
				URL: "http://intra10.office.tlpn/admin/customer_show.php?otrs_customer={clientCode}",
			},
		},
		{
			ID:          "parse_accounting",
			Description: "Extract line number and services from Accounting",
			System:      "Accounting",
			Action:      ActionParse,
			Params: StepParams{
				Message:    "PARSE_ACCOUNTING",
				URLPattern: "intra10.office.tlpn/admin",
			},
			WaitForConfirm: boolPtr(false),
		},
		{
			ID:          "show_services",
			Description: "Verify line number and service list",
			System:      "Accounting",
			Action:      ActionExtract,
			Params: StepParams{
				Message:    "PARSE_ACCOUNTING",
				URLPattern: "intra10.office.tlpn/admin",
			},
		},
		{
			ID:          "open_support_script",
			Description: "Open Support Script (PBX Teleo)",
			System:      "Support Script",
			Action:      ActionNavigate,
			Params: StepParams{
				URL: "http://intra10.office.tlpn/support/support_script/index.php?id=atc_teleo",
			},
		},
		{
			ID:          "fill_line_number",
			Description: "Insert the line number into Support Script",
			System:      "Support Script",
			Action:      ActionFill,
			Params: StepParams{
				Message:    "SUPPORT_SET_LINE",
				URLPattern: "intra10.office.tlpn/support",
				Value:      "{lineNumber}",
			},
		},
		{
			ID:          "click_create_atc",
			Description: "Click \"Create PBX\"",
			System:      "Support Script",
			Action:      ActionClick,
			Params: StepParams{
				Message:    "SUPPORT_CLICK_CREATE_ATC",
				URLPattern: "intra10.office.tlpn/support",
			},
		},
		{
			ID:          "open_ringme",
			Description: "Open Ringme search by client code",
			System:      "Ringme",
			Action:      ActionNavigate,
			Params: StepParams{
				URL: "https://ringmeadmin.tlpn/clients/?q={clientCode}",
			},
		},
		{
			ID:          "parse_ringme",
			Description: "Find the Teleo link in Ringme",
			System:      "Ringme",
			Action:      ActionParse,
			Params: StepParams{
				Message:    "PARSE_RINGME",
				URLPattern: "ringmeadmin.tlpn",
			},
			WaitForConfirm: boolPtr(false),
		},
		{
			ID:          "open_teleo_staff",
			Description: "Open Teleo staff section",
			System:      "Teleo",
			Action:      ActionNavigate,
			Params: StepParams{
				URL: "https://teleo.telphin.ru/staff/",
			},
		},
		{
			ID:          "open_teleo_routing",
			Description: "Open Teleo routing section",
			System:      "Teleo",
			Action:      ActionNavigate,
			Params: StepParams{
				URL: "https://teleo.telphin.ru/routing_new/",
			},
		},
	},
}

// ScenarioPostpone14 moves a ticket into the 14-day queue and sets a reminder.
var ScenarioPostpone14 = Playbook{
	ID:      "builtin_postpone_14",
	Name:    "Postpone 14 days",
	BuiltIn: true,
	Steps: []Step{
		{
			ID:          "parse_ticket",
			Description: "Extract TicketID from the current ticket",
			System:      "OTRS",
			Action:      ActionParse,
			Params: StepParams{
				Message:    "PARSE_OTRS",
				URLPattern: "otrs.tlpn",
			},
			WaitForConfirm: boolPtr(false),
		},
		{
			ID:          "move_queue",
			Description: "Move the ticket into the 14day queue",
			System:      "OTRS",
			Action:      ActionClick,
			Params: StepParams{
				Message:    "OTRS_MOVE_QUEUE",
				URLPattern: "otrs.tlpn",
				Extra:      map[string]string{"queue": "14day"},
			},
		},
		{
			ID:          "open_freetext",
			Description: "Open the free-fields form (AgentTicketFreeText)",
			System:      "OTRS",
			Action:      ActionNavigate,
			Params: StepParams{
				URL: "http://otrs.tlpn/otrs/index.pl?Action=AgentTicketFreeText;TicketID={ticketId}",
			},
		},
		{
			ID:          "set_pending_state",
			Description: "Set state \"pending reminder\" and date +14 days",
			System:      "OTRS",
			Action:      ActionCustom,
			Params: StepParams{
				Instruction: "Set next state to \"pending reminder\", date to today + 14 days, then submit.",
			},
		},
	},
}

// BuiltinScenarios lists every read-only playbook in presentation order.
var BuiltinScenarios = []Playbook{
	ScenarioATCConnect,
	ScenarioPostpone14,
}

// BuiltinScenario returns the built-in playbook with the given id, if any.
func BuiltinScenario(id string) (*Playbook, bool) {
	for i := range BuiltinScenarios {
		if BuiltinScenarios[i].ID == id {
			pb := BuiltinScenarios[i]
			return &pb, true
		}
	}
	return nil, false
}

// Package commissioning manages composition definitions.
//
// A definition is commissioned from a YAML or JSON service template,
// primed on the participants that support its element types, and later
// deprimed and decommissioned. Instances can only be created from a PRIMED
// definition.
//
// # Lifecycle
//
//	UNINITIALISED --Prime--> PRIMING --acks--> PRIMED
//	PRIMED --Deprime--> DEPRIMING --acks--> UNINITIALISED
//
// Acknowledgements arrive over MQTT and are applied by the supervision
// aggregator. A definition whose priming failed or timed out may be primed
// again.
//
// # Usage
//
//	svc := commissioning.New(commissioning.Deps{
//	    Definitions:  defs,
//	    Compositions: compositions,
//	    Participants: participants,
//	    Locker:       locker,
//	    Sender:       queue,
//	})
//	def, err := svc.Commission(ctx, body)
//	if err != nil {
//	    return err
//	}
//	err = svc.Prime(ctx, def.CompositionID)
package commissioning

package withholding

// Aggregate folds audit records into client-level totals. The result does not
// depend on the order of records.
func Aggregate(records []AuditRecord) AuditAggregate {
	var agg AuditAggregate

	for _, r := range records {
		agg.TotalGross = agg.TotalGross.Add(r.GrossAmount)
		agg.TotalExpected = agg.TotalExpected.Add(r.Expected)
		agg.TotalActual = agg.TotalActual.Add(r.Actual)
		agg.TotalDelta = agg.TotalDelta.Add(r.Delta)
		agg.TotalExpectedNet = agg.TotalExpectedNet.Add(r.ExpectedNet)
		agg.TotalActualNet = agg.TotalActualNet.Add(r.ActualNet)
		agg.PaymentCount++

		switch r.Classification {
		case Compliant:
			agg.ByClassification.Compliant++
		case UnderWithheld:
			agg.ByClassification.UnderWithheld++
		case OverWithheld:
			agg.ByClassification.OverWithheld++
		case Exempt:
			agg.ByClassification.Exempt++
		}
		if r.Classification != Compliant {
			agg.NonCompliantCount++
		}
	}

	return agg
}

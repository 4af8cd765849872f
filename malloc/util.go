package malloc

// overlap test over half-open intervals [base1, base1+cap1) and
// [base2, base2+cap2).
func overlap(base1 uint64, cap1 int64, base2 uint64, cap2 int64) bool {
	end1, end2 := base1+uint64(cap1), base2+uint64(cap2)
	return !(end1 <= base2 || end2 <= base1)
}

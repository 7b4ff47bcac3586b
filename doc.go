/*Package bam2fastq reconstructs the original FASTQ reads of a sample
  from an aligned .bam file.

  A sample's reads arrive as alignment records: the aligner's output,
  sorted by genome position, with each read's bases and qualities
  stored in aligned orientation.  Recovering the sequencer's FASTQ
  files therefore requires undoing what the aligner did: bringing the
  two reads of each pair back together, flipping reverse-strand reads
  back to read orientation, and splitting the result into the R1, R2,
  and singleton output files.

  The pipeline for one sample:

    classify -> partition -> [mapped]   collate -> extract \
                             [unmapped] merge -> collate -> extract -> join -> emit

  Classification inspects the first records of the stream (the
  classify window) and declares the sample paired-end only when the
  paired-flag fraction reaches the configured threshold.  Single-end
  samples skip the pair machinery entirely: every primary record
  becomes a singleton read.

  Partitioning splits the primary records of a paired sample into four
  categories by mate-mapping state: both mapped, both unmapped, read
  unmapped with mapped mate, and read mapped with unmapped mate.
  Secondary and supplementary alignments are copies of a primary
  record and never reach output.  The three categories with an
  unmapped side are concatenated into a single unmapped stream.

  Position-sorted input scatters the two reads of a pair arbitrarily
  far apart, so each stream is collated: reordered so records sharing
  a read name are adjacent, with groups in first-appearance order.
  Extraction then walks the name groups.  A group of two becomes an
  R1/R2 pair, a group of one becomes a singleton, and a group of three
  or more means the input was not a valid read archive and fails the
  sample.  Finally the mapped and unmapped branches are joined and
  written to <sample>.1.fq, <sample>.2.fq, and <sample>.singleton.fq;
  a file that would hold zero reads is not created.

  Samples are restored independently and in parallel.  A failing
  sample reports its error in its Result, leaves no partial output
  files behind, and does not disturb the other samples of the run.
*/
package bam2fastq
